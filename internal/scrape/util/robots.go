package util

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate fetches robots.txt once per host and answers whether a path may
// be crawled by the configured user agent.
type RobotsGate struct {
	hc        *http.Client
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobotsGate(hc *http.Client, userAgent string) *RobotsGate {
	return &RobotsGate{
		hc:        hc,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether raw may be fetched. An unreachable or broken
// robots.txt allows everything, matching common crawler behavior.
func (g *RobotsGate) Allowed(ctx context.Context, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}

	group := g.groupFor(ctx, u)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (g *RobotsGate) groupFor(ctx context.Context, u *url.URL) *robotstxt.Group {
	g.mu.Lock()
	defer g.mu.Unlock()

	if grp, ok := g.groups[u.Host]; ok {
		return grp
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	grp, err := g.fetch(ctx, robotsURL)
	if err != nil {
		log.Printf("[robots] %s unavailable, allowing: %v", robotsURL, err)
	}
	// cache nil too so a missing robots.txt is not refetched every run
	g.groups[u.Host] = grp
	return grp
}

func (g *RobotsGate) fetch(ctx context.Context, robotsURL string) (*robotstxt.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}
	return data.FindGroup(g.userAgent), nil
}
