package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bingobot/core/bootstrap"
	coreconfig "github.com/m3rciful/bingobot/core/config"
	"github.com/m3rciful/bingobot/core/logger"
)

// DefaultConfigEnvVar names the variable consulted when no path flag is given.
const DefaultConfigEnvVar = "CONFIG_PATH"

// Options describe how to load configuration, bootstrap infrastructure, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(cfg *coreconfig.Config) (*bootstrap.Result, error)

	ShutdownLogger func() error
	// RunApp blocks until ctx is done.
	RunApp func(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) error
}

// ResolveConfigPath applies the flag, env, default precedence. An empty
// result means the configuration comes from the environment only.
func ResolveConfigPath(opts Options) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	env := opts.ConfigEnvVar
	if env == "" {
		env = DefaultConfigEnvVar
	}
	if p := os.Getenv(env); p != "" {
		return p
	}
	return opts.DefaultConfigPath
}

// Run loads configuration, bootstraps infrastructure, and runs the app until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.RunApp == nil {
		return fmt.Errorf("cmd: RunApp is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	boot := opts.Bootstrap
	if boot == nil {
		boot = func(cfg *coreconfig.Config) (*bootstrap.Result, error) {
			return bootstrap.Run(bootstrap.Options{Config: cfg})
		}
	}

	cfgPath := ResolveConfigPath(opts)
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	// bootstrap may fail after the logger started
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	res, err := boot(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	if res.DB != nil {
		defer res.DB.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return opts.RunApp(ctx, cfg, res.DB)
}
