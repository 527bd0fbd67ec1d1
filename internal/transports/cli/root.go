package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sitetools/internal/app"
	"sitetools/internal/config"
	"sitetools/internal/transports/common"
	"sitetools/internal/transports/console"
	"sitetools/pkg/logger"
)

const (
	execTimeout = 30 * time.Second
	stopTimeout = 5 * time.Second
)

// LoggerFactory строит логгер по уровню из конфига. Логи пишутся в w,
// stdout остается за ответами команд.
type LoggerFactory func(w io.Writer, level string) *slog.Logger

type options struct {
	configPath string
}

// New создает корневую CLI-команду.
func New(version string, newLogger LoggerFactory) *cobra.Command {
	if newLogger == nil {
		newLogger = logger.NewWithWriter
	}
	opts := &options{}
	root := &cobra.Command{
		Use:           "sitetools",
		Short:         "Чат-бот диагностики сайтов поверх xxapi",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "путь к YAML-конфигу")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newServeCmd(opts, newLogger))
	root.AddCommand(newExecCmd(opts, newLogger))
	root.AddCommand(newConsoleCmd(opts, newLogger))
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

// withApp загружает конфиг, строит App и гарантирует Close на любом выходе.
func withApp(cmd *cobra.Command, opts *options, newLogger LoggerFactory, fn func(a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lg := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	a, err := app.NewApp(cmd.Context(), cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newServeCmd(opts *options, newLogger LoggerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить включенные в конфиге транспорты (telegram, web)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, newLogger, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newExecCmd(opts *options, newLogger LoggerFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "exec <command> [args...]",
		Short:   "Выполнить одну команду, например: exec tcping bing.com 443",
		Example: "  sitetools exec whois bing.com\n  sitetools exec /site https://www.bing.com",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, newLogger, func(a *app.App) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), execTimeout)
				defer cancel()

				reply, err := a.Exec(ctx, strings.Join(args, " "))
				if errors.Is(err, common.ErrNotCommand) {
					return fmt.Errorf("unknown command %q, available: %s", args[0], strings.Join(a.Registry.Commands(), ", "))
				}
				if err != nil {
					return err
				}
				return console.Render(cmd.OutOrStdout(), reply)
			})
		},
	}
}

func newConsoleCmd(opts *options, newLogger LoggerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Интерактивный чат: команды читаются из stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, newLogger, func(a *app.App) error {
				c := a.Console(cmd.InOrStdin(), cmd.OutOrStdout())
				if err := c.Start(cmd.Context()); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
					defer cancel()
					_ = c.Stop(stopCtx)
				}()
				select {
				case <-c.Done():
					if err := c.Err(); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				case <-cmd.Context().Done():
					return nil
				}
			})
		},
	}
}
