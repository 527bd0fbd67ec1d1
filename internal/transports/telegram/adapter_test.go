package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sitetools/internal/core"
	"sitetools/internal/transports/common"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 4)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type screenshotModule struct{}

func (m *screenshotModule) Name() string                   { return "shot" }
func (m *screenshotModule) Commands() []string             { return []string{"site"} }
func (m *screenshotModule) Init(ctx context.Context) error { return nil }
func (m *screenshotModule) Execute(ctx context.Context, cmd string, text string) (core.Reply, error) {
	return core.Reply{Segments: []core.Segment{
		{Type: core.SegmentText, Text: "截图成功：ok\n"},
		{Type: core.SegmentImage, URL: "https://img.example/shot.png"},
	}}, nil
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	r := core.NewRegistry()
	if err := r.Register(context.Background(), &screenshotModule{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	authz := core.NewAllowlistAuthorizer(map[string][]string{"telegram": {core.Wildcard}})
	return NewAdapter(r, authz, common.NewRateLimiter(10, time.Second), nil, Config{Token: "test"}, nil)
}

func commandMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 42},
		From:      &tgbotapi.User{ID: 1001},
	}
}

func TestHandleMessageSendsTextAndPhoto(t *testing.T) {
	a := newTestAdapter(t)
	bot := newFakeBot()

	a.HandleMessage(context.Background(), bot, commandMessage("/site https://www.bing.com"))

	if len(bot.sent) != 2 {
		t.Fatalf("expected text and photo, got %d sends", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.Text != "截图成功：ok\n" || msg.ChatID != 42 || msg.ReplyToMessageID != 7 {
		t.Fatalf("unexpected text message: %#v", bot.sent[0])
	}
	photo, ok := bot.sent[1].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("expected photo, got %T", bot.sent[1])
	}
	if u, ok := photo.File.(tgbotapi.FileURL); !ok || string(u) != "https://img.example/shot.png" {
		t.Fatalf("unexpected photo file: %#v", photo.File)
	}
}

func TestHandleMessageIgnoresPlainChat(t *testing.T) {
	a := newTestAdapter(t)
	bot := newFakeBot()
	a.HandleMessage(context.Background(), bot, commandMessage("hello"))
	a.HandleMessage(context.Background(), bot, commandMessage("/unknown arg"))
	if len(bot.sent) != 0 {
		t.Fatalf("non-commands must be ignored, got %d sends", len(bot.sent))
	}
}

func TestStartPollsUpdatesUntilStop(t *testing.T) {
	a := newTestAdapter(t)
	bot := newFakeBot()
	a.newBot = func(token string) (BotAPI, error) { return bot, nil }

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("second start must fail")
	}
	bot.updates <- tgbotapi.Update{Message: commandMessage("/site https://www.bing.com")}

	deadline := time.Now().Add(2 * time.Second)
	for bot.sentCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bot.sentCount() != 2 {
		t.Fatalf("expected update to be handled, got %d sends", bot.sentCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !bot.stopped {
		t.Fatalf("polling must be stopped")
	}
}

func TestStartRequiresToken(t *testing.T) {
	a := newTestAdapter(t)
	a.cfg.Token = ""
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestHandleMessageIgnoresOtherBots(t *testing.T) {
	a := newTestAdapter(t)
	a.username = "SiteToolsBot"
	bot := newFakeBot()

	a.HandleMessage(context.Background(), bot, commandMessage("/site@OtherBot https://www.bing.com"))
	if bot.sentCount() != 0 {
		t.Fatalf("command for another bot must be ignored, got %d sends", bot.sentCount())
	}

	a.HandleMessage(context.Background(), bot, commandMessage("/site@sitetoolsbot https://www.bing.com"))
	if bot.sentCount() != 2 {
		t.Fatalf("command addressed to this bot must be answered, got %d sends", bot.sentCount())
	}
}

func TestAddressedToOtherBot(t *testing.T) {
	cases := []struct {
		text, username string
		want           bool
	}{
		{"/ping bing.com", "SiteToolsBot", false},
		{"/ping@SiteToolsBot bing.com", "SiteToolsBot", false},
		{"/ping@OtherBot bing.com", "SiteToolsBot", true},
		{"/ping@OtherBot bing.com", "", false},
		{"", "SiteToolsBot", false},
	}
	for _, tc := range cases {
		if got := addressedToOtherBot(tc.text, tc.username); got != tc.want {
			t.Fatalf("addressedToOtherBot(%q, %q) = %v, want %v", tc.text, tc.username, got, tc.want)
		}
	}
}
