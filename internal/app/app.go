package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sitetools/internal/config"
	"sitetools/internal/core"
	"sitetools/internal/modules/site"
	"sitetools/internal/sitetool"
	"sitetools/internal/transports/common"
	"sitetools/internal/transports/console"
	"sitetools/internal/transports/telegram"
	"sitetools/internal/transports/web"
)

// App агрегирует зависимости ядра.
type App struct {
	Registry   *core.Registry
	Transports *core.TransportManager
	Authorizer core.Authorizer
	Limiter    *common.RateLimiter
	Audit      common.AuditSink
	Config     config.Config
	Logger     *slog.Logger

	fetcher   *sitetool.HTTPFetcher
	closeOnce sync.Once
}

// NewApp строит приложение: общий HTTP-клиент, реестр команд и транспорты
// из конфигурации. Вызывающий обязан вызвать Close.
func NewApp(ctx context.Context, cfg config.Config, lg *slog.Logger) (*App, error) {
	if lg == nil {
		lg = slog.Default()
	}
	fetcher := sitetool.NewHTTPFetcher(sitetool.NewHTTPClient(cfg.APITimeout(), cfg.API.InsecureSkipVerify))
	return newApp(ctx, cfg, lg, fetcher, fetcher)
}

func newApp(ctx context.Context, cfg config.Config, lg *slog.Logger, f sitetool.Fetcher, owned *sitetool.HTTPFetcher) (*App, error) {
	api := sitetool.NewClient(cfg.SiteTool(), f, lg)

	r := core.NewRegistry()
	if err := r.Register(ctx, site.New(api)); err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, fmt.Errorf("register site module: %w", err)
	}

	a := &App{
		Registry:   r,
		Transports: core.NewTransportManager(),
		Authorizer: core.NewAllowlistAuthorizer(cfg.Security.AuthAllowlist),
		Limiter:    common.NewRateLimiter(cfg.Limits.RatePerWindow, cfg.RateWindow()),
		Audit:      common.LogAuditSink{Logger: lg},
		Config:     cfg,
		Logger:     lg,
		fetcher:    owned,
	}

	if cfg.Telegram.Enabled {
		tg := telegram.NewAdapter(r, a.Authorizer, a.Limiter, a.Audit, telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: cfg.Telegram.PollTimeoutS,
		}, lg)
		if err := a.Transports.Register(tg); err != nil {
			a.Close()
			return nil, fmt.Errorf("register telegram transport: %w", err)
		}
	}
	if cfg.Web.Enabled {
		wa := web.NewAdapter(r, a.Authorizer, a.Limiter, a.Audit, web.Config{
			ListenAddr:      cfg.Web.ListenAddr,
			RequestTimeout:  time.Duration(cfg.Web.RequestTimeoutMS) * time.Millisecond,
			WriteTimeout:    time.Duration(cfg.Web.RequestTimeoutMS)*time.Millisecond + time.Second,
			ShutdownTimeout: time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
			MaxRequestBody:  cfg.Web.MaxBodyBytes,
		}, lg)
		if err := a.Transports.Register(wa); err != nil {
			a.Close()
			return nil, fmt.Errorf("register web transport: %w", err)
		}
	}
	return a, nil
}

// Console создает консольный транспорт поверх in/out.
func (a *App) Console(in io.Reader, out io.Writer) *console.Adapter {
	return console.NewAdapter(a.Registry, a.Authorizer, a.Limiter, a.Audit, in, out)
}

// Close высвобождает HTTP-клиент; повторные вызовы ничего не делают.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.fetcher != nil {
			a.fetcher.Close()
		}
	})
	return nil
}

// Serve запускает транспорты и ждет отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if len(a.Transports.Names()) == 0 {
		return fmt.Errorf("no transports enabled: set telegram.enabled or web.enabled")
	}
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	a.Logger.Info("transports started", "transports", a.Transports.Names(), "commands", a.Registry.Commands())
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Transports.StopAll(stopCtx); err != nil {
			a.Logger.Error("stop transports", "err", err)
		}
	}()

	<-ctx.Done()
	return nil
}

// Exec исполняет одну команду от имени консоли.
func (a *App) Exec(ctx context.Context, text string) (core.Reply, error) {
	svc := &common.Service{
		Source:     "console",
		Registry:   a.Registry,
		Authorizer: a.Authorizer,
		AuditSink:  a.Audit,
	}
	return svc.ExecuteText(ctx, console.SubjectID, text)
}
