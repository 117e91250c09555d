package discord

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"gradwatch-engine/internal/bot"
	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/query"
)

type sent struct {
	channel string
	content string
	file    string
	data    []byte
}

type fakeSession struct {
	mu      sync.Mutex
	sent    []sent
	history []*discordgo.Message
	sendErr error
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sent{channel: channelID, content: content})
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	s := sent{channel: channelID, content: data.Content}
	if len(data.Files) > 0 {
		s.file = data.Files[0].Name
		s.data, _ = io.ReadAll(data.Files[0].Reader)
	}
	f.sent = append(f.sent, s)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessages(_ string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeHandler struct {
	got   []bot.Mention
	reply bot.Reply
}

func (h *fakeHandler) HandleMention(_ context.Context, m bot.Mention) bot.Reply {
	h.got = append(h.got, m)
	return h.reply
}

func msg(id, authorID, content string, mentioned ...string) *discordgo.Message {
	m := &discordgo.Message{
		ID:        id,
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user" + authorID},
	}
	for _, u := range mentioned {
		m.Mentions = append(m.Mentions, &discordgo.User{ID: u})
	}
	return m
}

func TestNotify(t *testing.T) {
	fs := &fakeSession{}
	a := &Adapter{s: fs, channelID: "chan"}

	p := domain.Posting{ExternalID: "42", Institution: "MIT", Program: "Economics", DegreeLevel: "PhD", DecisionLabel: "Accepted on 3 Mar"}
	if err := a.Notify(context.Background(), p); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(fs.sent) != 1 || fs.sent[0].channel != "chan" {
		t.Fatalf("sent = %+v", fs.sent)
	}
	if !strings.Contains(fs.sent[0].content, "**MIT**") {
		t.Fatalf("content = %q", fs.sent[0].content)
	}

	fs.sendErr = errors.New("503")
	if err := a.Notify(context.Background(), p); err == nil {
		t.Fatal("expected send error")
	}

	if err := (&Adapter{s: fs}).Notify(context.Background(), p); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("err = %v, want ErrNoChannel", err)
	}
}

func TestHandleMessageRouting(t *testing.T) {
	fs := &fakeSession{history: []*discordgo.Message{
		msg("9", "u2", "newest"),
		msg("8", "u3", "older"),
	}}
	fs.history[0].Author.Bot = true
	h := &fakeHandler{reply: bot.Reply{Text: "answer"}}
	a := &Adapter{s: fs, handler: h}
	ctx := context.Background()

	a.handleMessage(ctx, "bot", msg("1", "bot", "<@bot> talking to myself", "bot"))
	a.handleMessage(ctx, "bot", msg("2", "u1", "no mention here"))
	everyone := msg("3", "u1", "@everyone hi", "bot")
	everyone.MentionEveryone = true
	a.handleMessage(ctx, "bot", everyone)
	if len(h.got) != 0 {
		t.Fatalf("handler called for ignored messages: %+v", h.got)
	}

	a.handleMessage(ctx, "bot", msg("10", "u1", "<@bot> how many accepted?", "bot"))
	if len(h.got) != 1 {
		t.Fatalf("handler calls = %d", len(h.got))
	}
	got := h.got[0]
	if got.ID != "10" || got.BotID != "bot" || got.Content != "<@bot> how many accepted?" {
		t.Fatalf("mention = %+v", got)
	}
	if len(got.Recent) != 2 || got.Recent[0].Content != "older" || !got.Recent[1].IsBot {
		t.Fatalf("recent should be oldest first: %+v", got.Recent)
	}
	if len(fs.sent) != 1 || fs.sent[0].content != "answer" || fs.sent[0].channel != "c1" {
		t.Fatalf("sent = %+v", fs.sent)
	}
}

func TestIgnoredReplyNotSent(t *testing.T) {
	fs := &fakeSession{}
	a := &Adapter{s: fs, handler: &fakeHandler{reply: bot.Reply{Ignored: true}}}
	a.handleMessage(context.Background(), "bot", msg("1", "u1", "<@!bot> again", "bot"))
	if len(fs.sent) != 0 {
		t.Fatalf("sent = %+v", fs.sent)
	}
}

func TestSendChartRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot_x.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := &fakeSession{}
	a := &Adapter{s: fs, handler: &fakeHandler{reply: bot.Reply{Text: "chart", ChartPath: path}}}

	a.handleMessage(context.Background(), "bot", msg("1", "u1", "<@bot> plot it", "bot"))
	if len(fs.sent) != 1 || fs.sent[0].file != "plot_x.png" || string(fs.sent[0].data) != "png" {
		t.Fatalf("sent = %+v", fs.sent)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("chart file should be removed, stat err = %v", err)
	}
}

func TestSendChartKeepsFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot_y.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := &fakeSession{sendErr: errors.New("boom")}
	a := &Adapter{s: fs}
	if err := a.send(context.Background(), msg("1", "u1", ""), bot.Reply{Text: "x", ChartPath: path}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("chart file should remain after failed delivery: %v", err)
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", MaxMessageLen+10)
	got := Clip(long)
	if n := len([]rune(got)); n != MaxMessageLen {
		t.Fatalf("clipped length = %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("missing ellipsis")
	}
	if Clip("short") != "short" {
		t.Fatal("short text changed")
	}
}

func TestSendLongListInPages(t *testing.T) {
	res := query.Result{Columns: []string{"institution", "n"}}
	for i := 0; i < 25; i++ {
		res.Rows = append(res.Rows, []any{"School", int64(i)})
	}
	fs := &fakeSession{}
	a := &Adapter{s: fs}
	if err := a.send(context.Background(), msg("1", "u1", ""), bot.Reply{Text: "Here's what I found:", Result: &res}); err != nil {
		t.Fatal(err)
	}
	if len(fs.sent) != 3 {
		t.Fatalf("messages = %d, want main + 2 pages", len(fs.sent))
	}
	if !strings.HasPrefix(fs.sent[1].content, "Rows 11-20 of 25:") || !strings.HasPrefix(fs.sent[2].content, "Rows 21-25 of 25:") {
		t.Fatalf("pages = %q / %q", fs.sent[1].content, fs.sent[2].content)
	}

	fs = &fakeSession{}
	a = &Adapter{s: fs}
	short := query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(4)}}}
	if err := a.send(context.Background(), msg("1", "u1", ""), bot.Reply{Text: "There are 4 results", Result: &short}); err != nil {
		t.Fatal(err)
	}
	if len(fs.sent) != 1 {
		t.Fatalf("messages = %d, want 1", len(fs.sent))
	}
}
