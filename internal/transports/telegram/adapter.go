package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sitetools/internal/core"
	"sitetools/internal/transports/common"
)

// BotAPI — методы Telegram Bot API, которые использует адаптер.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config задает параметры long polling.
type Config struct {
	Token       string
	PollTimeout int
}

// Adapter предоставляет transport-слой для Telegram.
type Adapter struct {
	svc    *common.Service
	cfg    Config
	logger *slog.Logger
	newBot func(token string) (BotAPI, error)

	mu       sync.Mutex
	bot      BotAPI
	username string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewAdapter создает Telegram адаптер.
func NewAdapter(registry *core.Registry, authorizer core.Authorizer, limiter *common.RateLimiter, audit common.AuditSink, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		svc: &common.Service{
			Source:      "telegram",
			Registry:    registry,
			Authorizer:  authorizer,
			RateLimiter: limiter,
			AuditSink:   audit,
		},
		cfg:    cfg,
		logger: logger,
		newBot: func(token string) (BotAPI, error) {
			bot, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return nil, err
			}
			return bot, nil
		},
	}
}

func (a *Adapter) Name() string { return "telegram" }

// Start подключается к Bot API и запускает цикл получения обновлений.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bot != nil {
		return errors.New("telegram transport already started")
	}
	if a.cfg.Token == "" {
		return errors.New("telegram token is empty")
	}
	bot, err := a.newBot(a.cfg.Token)
	if err != nil {
		return err
	}
	if api, ok := bot.(*tgbotapi.BotAPI); ok {
		a.username = api.Self.UserName
		a.logger.Info("telegram bot connected", "username", a.username)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeout
	updates := bot.GetUpdatesChan(u)

	loopCtx, cancel := context.WithCancel(ctx)
	a.bot = bot
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(loopCtx, bot, updates)
	}()
	return nil
}

// Stop прекращает polling и ждет обработки текущих команд.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	bot, cancel := a.bot, a.cancel
	a.bot, a.cancel = nil, nil
	a.mu.Unlock()
	if bot == nil {
		return nil
	}
	cancel()
	bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) loop(ctx context.Context, bot BotAPI, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
				continue
			}
			msg := update.Message
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.HandleMessage(ctx, bot, msg)
			}()
		}
	}
}

// HandleMessage исполняет команду из сообщения и отправляет ответ в чат.
func (a *Adapter) HandleMessage(ctx context.Context, bot BotAPI, msg *tgbotapi.Message) {
	a.mu.Lock()
	username := a.username
	a.mu.Unlock()
	if addressedToOtherBot(msg.Text, username) {
		return
	}

	subjectID := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		subjectID = strconv.FormatInt(msg.From.ID, 10)
	}
	reply, err := a.svc.ExecuteText(ctx, subjectID, msg.Text)
	if errors.Is(err, common.ErrNotCommand) {
		return
	}
	if err != nil {
		a.logger.Warn("telegram command failed", "subject", subjectID, "err", err)
	}
	a.send(bot, msg.Chat.ID, msg.MessageID, reply)
}

func (a *Adapter) send(bot BotAPI, chatID int64, replyTo int, reply core.Reply) {
	if text := reply.Text(); text != "" {
		m := tgbotapi.NewMessage(chatID, text)
		m.ReplyToMessageID = replyTo
		if _, err := bot.Send(m); err != nil {
			a.logger.Error("telegram send message", "chat_id", chatID, "err", err)
		}
	}
	for _, u := range reply.Images() {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(u))
		photo.ReplyToMessageID = replyTo
		if _, err := bot.Send(photo); err != nil {
			a.logger.Error("telegram send photo", "chat_id", chatID, "url", u, "err", err)
		}
	}
}

// addressedToOtherBot сообщает, что команда вида /cmd@name адресована
// не этому боту. Без известного имени бота суффикс не проверяется.
func addressedToOtherBot(text, username string) bool {
	if username == "" {
		return false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	at := strings.IndexByte(fields[0], '@')
	if at < 0 {
		return false
	}
	return !strings.EqualFold(fields[0][at+1:], username)
}
