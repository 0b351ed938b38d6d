package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/recipebot/core/buildinfo"
	coreconfig "github.com/m3rciful/recipebot/core/config"
	"github.com/m3rciful/recipebot/core/logger"
	coretelegram "github.com/m3rciful/recipebot/core/telegram"
)

// DefaultConfigPath is used when neither the env var nor Options provide a path.
// A missing file is not an error: configuration then comes from the environment.
const DefaultConfigPath = "config.yaml"

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals overrides the shutdown signals; defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// ResolveConfigPath returns the config path from env, then opts, then DefaultConfigPath.
func ResolveConfigPath(opts Options) string {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath
	}
	return DefaultConfigPath
}

// Run loads configuration, bootstraps the app and runs the bot until a
// shutdown signal arrives. A signal-driven stop returns nil.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	cfgPath := ResolveConfigPath(opts)
	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	if runOpts.Config == nil {
		runOpts.Config = cfg.CoreConfig()
	}
	wrapLifecycle(&runOpts, time.Now())

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	if err := run(ctx, runOpts); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// wrapLifecycle adds the ready and shutdown log lines around the app hooks.
func wrapLifecycle(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	appLog := logger.Component("app")

	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		appLog.LogAttrs(ctx, slog.LevelInfo, "app ready",
			slog.String("event", "ready"),
			slog.String("version", buildinfo.Version),
			slog.String("commit", buildinfo.Commit),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		appLog.LogAttrs(ctx, slog.LevelInfo, "shutting down...",
			slog.String("event", "shutdown"),
			slog.Duration("uptime", logger.RoundMS(time.Since(startedAt))),
		)
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}
}
