package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"gradwatch-engine/internal/answer"
	"gradwatch-engine/internal/bot"
	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/notify"
)

const (
	// MaxMessageLen is Discord's per-message character limit.
	MaxMessageLen = 2000
	contextLimit  = 6
	handleTimeout = 3 * time.Minute
)

var ErrNoChannel = errors.New("discord: channel id not configured")

// session is the subset of *discordgo.Session the adapter calls.
type session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// MentionHandler answers one mention; *bot.Bot implements it.
type MentionHandler interface {
	HandleMention(ctx context.Context, m bot.Mention) bot.Reply
}

type Adapter struct {
	dg        *discordgo.Session
	s         session
	channelID string
	handler   MentionHandler
}

// New builds a session with the guild message and message content intents.
// handler may be nil, in which case mentions are ignored.
func New(token, channelID string, handler MentionHandler) (*Adapter, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord: token is empty")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	a := &Adapter{dg: dg, s: dg, channelID: channelID, handler: handler}
	dg.AddHandler(a.onMessageCreate)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("[discord] ready user=%s guilds=%d", r.User.Username, len(r.Guilds))
	})
	return a, nil
}

func (a *Adapter) Open() error  { return a.dg.Open() }
func (a *Adapter) Close() error { return a.dg.Close() }

// Notify posts one formatted posting to the configured channel.
func (a *Adapter) Notify(ctx context.Context, p domain.Posting) error {
	if a.channelID == "" {
		return ErrNoChannel
	}
	_, err := a.s.ChannelMessageSend(a.channelID, Clip(notify.FormatPosting(p)), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send %s: %w", p.ExternalID, err)
	}
	return nil
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State == nil || s.State.User == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		a.handleMessage(ctx, s.State.User.ID, m.Message)
	}()
}

// handleMessage routes a channel message that mentions botID to the handler
// and delivers the reply.
func (a *Adapter) handleMessage(ctx context.Context, botID string, m *discordgo.Message) {
	if a.handler == nil || m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == botID || m.MentionEveryone || !mentions(m, botID) {
		return
	}

	reply := a.handler.HandleMention(ctx, bot.Mention{
		ID:      m.ID,
		BotID:   botID,
		Content: m.Content,
		Recent:  a.recent(ctx, m),
	})
	if reply.Ignored {
		return
	}
	if err := a.send(ctx, m, reply); err != nil {
		log.Printf("[discord] reply failed msg=%s err=%v", m.ID, err)
	}
}

// recent returns the messages preceding m, oldest first.
func (a *Adapter) recent(ctx context.Context, m *discordgo.Message) []llm.Message {
	msgs, err := a.s.ChannelMessages(m.ChannelID, contextLimit, m.ID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("[discord] history fetch failed channel=%s err=%v", m.ChannelID, err)
		return nil
	}
	out := make([]llm.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		h := msgs[i]
		if h == nil || h.Author == nil {
			continue
		}
		out = append(out, llm.Message{Author: h.Author.Username, Content: h.Content, IsBot: h.Author.Bot})
	}
	return out
}

func (a *Adapter) send(ctx context.Context, m *discordgo.Message, reply bot.Reply) error {
	if err := a.sendMain(ctx, m, reply); err != nil {
		return err
	}
	if reply.Result == nil {
		return nil
	}
	// Long lists continue in follow-up messages after the main answer.
	for _, page := range answer.Pages(*reply.Result) {
		if _, err := a.s.ChannelMessageSend(m.ChannelID, Clip(page), discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send page: %w", err)
		}
	}
	return nil
}

func (a *Adapter) sendMain(ctx context.Context, m *discordgo.Message, reply bot.Reply) error {
	text := Clip(reply.Text)
	if reply.ChartPath == "" {
		_, err := a.s.ChannelMessageSend(m.ChannelID, text, discordgo.WithContext(ctx))
		return err
	}

	f, err := os.Open(reply.ChartPath)
	if err != nil {
		log.Printf("[discord] chart missing path=%s err=%v", reply.ChartPath, err)
		_, err := a.s.ChannelMessageSend(m.ChannelID, text, discordgo.WithContext(ctx))
		return err
	}
	_, err = a.s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content: text,
		Files: []*discordgo.File{{
			Name:        filepath.Base(reply.ChartPath),
			ContentType: "image/png",
			Reader:      f,
		}},
	}, discordgo.WithContext(ctx))
	f.Close()
	if err != nil {
		return err
	}
	if err := os.Remove(reply.ChartPath); err != nil {
		log.Printf("[discord] chart cleanup failed path=%s err=%v", reply.ChartPath, err)
	}
	return nil
}

func mentions(m *discordgo.Message, botID string) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			return true
		}
	}
	return strings.Contains(m.Content, "<@"+botID+">") || strings.Contains(m.Content, "<@!"+botID+">")
}

// Clip truncates s to MaxMessageLen runes, marking the cut with an ellipsis.
func Clip(s string) string {
	r := []rune(s)
	if len(r) <= MaxMessageLen {
		return s
	}
	return string(r[:MaxMessageLen-3]) + "..."
}
