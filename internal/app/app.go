// Package app wires the gateway, the user store, the conversation engine and the ingest loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/bingobot/core/config"
	"github.com/m3rciful/bingobot/core/logger"
	"github.com/m3rciful/bingobot/core/scheduler"
	"github.com/m3rciful/bingobot/internal/conversation"
	"github.com/m3rciful/bingobot/internal/gateway"
	"github.com/m3rciful/bingobot/internal/ingest"
	"github.com/m3rciful/bingobot/internal/user"

	"log/slog"
)

const (
	webhookCleanupTimeout = 10 * time.Second
	heartbeatTimeout      = 5 * time.Second
)

type activeCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Options configures an App.
type Options struct {
	Config *coreconfig.Config
	DB     *sqlx.DB
	// HTTPClient overrides the gateway transport, mostly for tests.
	HTTPClient *http.Client
}

// App is the running bot.
type App struct {
	cfg       *coreconfig.Config
	client    *gateway.Client
	store     activeCounter
	engine    *conversation.Engine
	loop      *ingest.Loop
	scheduler *scheduler.Scheduler
}

// New builds every component without contacting Telegram.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: nil config provided")
	}
	if opts.DB == nil {
		return nil, errors.New("app: nil database")
	}
	cfg := opts.Config
	pollTimeout := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second

	client, err := gateway.New(gateway.Options{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: pollTimeout,
		HTTPClient:  opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store := user.NewSQLStore(opts.DB)
	engine, err := conversation.New(conversation.Options{
		Store:    store,
		Sender:   client,
		GameHost: cfg.Game.Host,
		Accounts: cfg.Deposit.Accounts,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	loop, err := ingest.New(ingest.Options{
		Fetcher:      client,
		Handler:      engine,
		PollTimeout:  pollTimeout,
		ErrorBackoff: time.Duration(cfg.Ingest.ErrorBackoffMS) * time.Millisecond,
		Workers:      cfg.Ingest.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		cfg:    cfg,
		client: client,
		store:  store,
		engine: engine,
		loop:   loop,
	}

	if cfg.Heartbeat.Spec != "" {
		a.scheduler = scheduler.New(time.UTC)
		if _, err := a.scheduler.Schedule(cfg.Heartbeat.Spec, func() {
			a.heartbeat(context.Background())
		}); err != nil {
			return nil, fmt.Errorf("app: heartbeat: %w", err)
		}
	}
	return a, nil
}

// Run clears a stale webhook, starts the heartbeat and polls until ctx is done.
func (a *App) Run(ctx context.Context) error {
	startedAt := time.Now()
	if !a.cfg.Telegram.SkipWebhookCleanup {
		a.clearWebhook(ctx)
	}

	if a.scheduler != nil {
		a.scheduler.Start()
		defer a.scheduler.Stop()
	}

	logger.Info(ctx, "app", "ready",
		slog.Int("workers", a.cfg.Ingest.Workers),
		slog.Int("timeout_seconds", a.cfg.Telegram.LongPollTimeoutSeconds),
		slog.Duration("startup_duration", time.Since(startedAt)),
	)

	err := a.loop.Run(ctx)

	a.heartbeat(context.WithoutCancel(ctx))
	logger.Info(ctx, "app", "shutdown")
	return err
}

// Stats exposes the ingest loop counters.
func (a *App) Stats() ingest.Stats {
	return a.loop.Stats()
}

func (a *App) clearWebhook(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, webhookCleanupTimeout)
	defer cancel()
	if err := a.client.ClearWebhook(cctx); err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("status", "failed"),
			slog.String("err", gateway.Redact(err.Error())),
			slog.String("err_kind", gateway.Classify(err)),
		)
		return
	}
	logger.Info(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
}

func (a *App) heartbeat(ctx context.Context) {
	st := a.loop.Stats()
	attrs := []slog.Attr{
		slog.Int("cursor", st.Cursor),
		slog.Uint64("processed", st.Processed),
		slog.Uint64("failed", st.Failed),
		slog.Uint64("duplicates", st.Duplicates),
		slog.Uint64("batches", st.Batches),
		slog.Uint64("fetch_errors", st.FetchErrs),
		slog.Int("sessions", a.engine.Sessions().Len()),
	}
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()
	active, err := a.store.CountActive(ctx)
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	} else {
		attrs = append(attrs, slog.Int("users_active", active))
	}
	logger.Info(ctx, "app", "heartbeat", attrs...)
}
