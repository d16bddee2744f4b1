package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vango-dev/vdombridge/internal/config"
	"github.com/vango-dev/vdombridge/internal/counter"
	"github.com/vango-dev/vdombridge/pkg/server"
)

type serveFlags struct {
	addr           string
	path           string
	protocol       string
	allowAnyOrigin bool
	logLevel       string
	logFormat      string
	deferDelay     time.Duration
	underflow      string
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the counter application",
		Long: `Start the WebSocket server with the reference counter application.

Each connection gets its own counter starting at zero. Whenever the
count becomes even, the server sends the opposite action to itself
after the defer delay.

Examples:
  vdombridge serve
  vdombridge serve --addr=:8080 --path=/live
  VDOMBRIDGE_UNDERFLOW=reject vdombridge serve --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	f.register(cmd.Flags())

	return cmd
}

func (f *serveFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.addr, "addr", "a", "", "Listen address (default from VDOMBRIDGE_ADDR)")
	flags.StringVar(&f.path, "path", "", "WebSocket upgrade path")
	flags.StringVar(&f.protocol, "protocol", "", "Accepted WebSocket sub-protocol")
	flags.BoolVar(&f.allowAnyOrigin, "allow-any-origin", false, "Skip the same-origin check")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	flags.DurationVar(&f.deferDelay, "defer-delay", 0, "Delay before the counter reacts to an even count")
	flags.StringVar(&f.underflow, "underflow", "", "Decrement at zero: saturate, reject or fail")
}

// apply copies the flags the user set onto cfg and revalidates it.
func (f *serveFlags) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("addr") {
		cfg.Address = f.addr
	}
	if flags.Changed("path") {
		cfg.Path = f.path
	}
	if flags.Changed("protocol") {
		cfg.Protocol = f.protocol
	}
	if flags.Changed("allow-any-origin") {
		cfg.AllowAnyOrigin = f.allowAnyOrigin
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("defer-delay") {
		cfg.DeferDelay = f.deferDelay
	}
	if flags.Changed("underflow") {
		policy, err := counter.ParseUnderflowPolicy(f.underflow)
		if err != nil {
			return err
		}
		cfg.Underflow = policy
	}
	return cfg.Validate()
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.ServerConfig(), counter.NewCodec(), counter.NewSessionFactory(cfg.CounterOptions()))
	srv.SetLogger(logger.With("component", "server"))

	logger.Info("starting vdombridge",
		"version", version,
		"address", cfg.Address,
		"underflow", cfg.Underflow,
		"defer_delay", cfg.DeferDelay)
	return srv.Run(ctx)
}
