package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the app's secrets in the OS keychain.
	KeyringService = "gradwatch"

	DiscordToken     = "DISCORD_TOKEN"
	OpenRouterAPIKey = "OPENROUTER_API_KEY"
)

var ErrNotFound = errors.New("secret not found")

// Known lists the secret names the engine reads.
var Known = []string{DiscordToken, OpenRouterAPIKey}

// Get returns the named secret from the OS keychain, falling back to the
// environment variable of the same name.
func Get(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("secret name is empty")
	}
	v, err := keyring.Get(KeyringService, name)
	if err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w (set it in the keychain or via env)", name, ErrNotFound)
}

func Set(name, value string) error {
	if !isKnown(name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, name, value)
}

func Delete(name string) error {
	if !isKnown(name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	err := keyring.Delete(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Status reports which known secrets resolve, without revealing them.
func Status() map[string]bool {
	out := make(map[string]bool, len(Known))
	for _, k := range Known {
		_, err := Get(k)
		out[k] = err == nil
	}
	return out
}

func isKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}
