// Package ingest pulls updates from the gateway with a monotonic cursor and
// hands each one to the conversation handler exactly once per process.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/m3rciful/bingobot/core/logger"
	"github.com/m3rciful/bingobot/internal/gateway"
	"log/slog"
)

// ErrPanic wraps a value recovered from a panicking handler.
var ErrPanic = errors.New("ingest: handler panic")

// Fetcher returns the updates at or after offset, waiting up to timeout.
type Fetcher interface {
	Fetch(ctx context.Context, offset int, timeout time.Duration) ([]gateway.Event, error)
}

// Handler processes a single event.
type Handler interface {
	Handle(ctx context.Context, ev gateway.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev gateway.Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev gateway.Event) error {
	return f(ctx, ev)
}

const (
	defaultPollTimeout  = 30 * time.Second
	defaultErrorBackoff = time.Second
)

// Options configures a Loop.
type Options struct {
	Fetcher Fetcher
	Handler Handler
	// PollTimeout is the long-poll window passed to every fetch.
	PollTimeout time.Duration
	// ErrorBackoff is the pause after a failed fetch.
	ErrorBackoff time.Duration
	// Workers > 1 shards each batch by chat id.
	Workers int
	// Cursor is the first update id to request; 0 lets the gateway decide.
	Cursor int
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Cursor int
	// Processed counts events handed to the handler, Failed the subset that returned an error or panicked.
	Processed  uint64
	Failed     uint64
	Duplicates uint64
	Batches    uint64
	FetchErrs  uint64
}

// Loop is a single-consumer polling loop.
type Loop struct {
	fetcher      Fetcher
	handler      Handler
	pollTimeout  time.Duration
	errorBackoff time.Duration
	workers      int

	cursor     atomic.Int64
	processed  atomic.Uint64
	failed     atomic.Uint64
	duplicates atomic.Uint64
	batches    atomic.Uint64
	fetchErrs  atomic.Uint64
}

// New validates opts and builds a Loop.
func New(opts Options) (*Loop, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("ingest: nil fetcher")
	}
	if opts.Handler == nil {
		return nil, errors.New("ingest: nil handler")
	}
	if opts.Cursor < 0 {
		return nil, fmt.Errorf("ingest: negative cursor %d", opts.Cursor)
	}
	l := &Loop{
		fetcher:      opts.Fetcher,
		handler:      opts.Handler,
		pollTimeout:  opts.PollTimeout,
		errorBackoff: opts.ErrorBackoff,
		workers:      opts.Workers,
	}
	if l.pollTimeout <= 0 {
		l.pollTimeout = defaultPollTimeout
	}
	if l.errorBackoff <= 0 {
		l.errorBackoff = defaultErrorBackoff
	}
	if l.workers < 1 {
		l.workers = 1
	}
	l.cursor.Store(int64(opts.Cursor))
	return l, nil
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cursor:     int(l.cursor.Load()),
		Processed:  l.processed.Load(),
		Failed:     l.failed.Load(),
		Duplicates: l.duplicates.Load(),
		Batches:    l.batches.Load(),
		FetchErrs:  l.fetchErrs.Load(),
	}
}

// Run polls until ctx is cancelled and then returns nil. A batch that was
// already fetched is always processed to the end, even after cancellation.
func (l *Loop) Run(ctx context.Context) error {
	ctx = logger.WithLogger(ctx, logger.Component("ingest"))
	logger.Info(ctx, "ingest", "loop.start",
		slog.String("mode", "polling"),
		slog.Int("cursor", l.Stats().Cursor),
		slog.Int("workers", l.workers),
		slog.Int("timeout_seconds", int(l.pollTimeout/time.Second)),
	)

	for {
		if ctx.Err() != nil {
			break
		}
		if err := l.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			if !l.sleep(ctx, l.errorBackoff) {
				break
			}
		}
	}

	st := l.Stats()
	logger.Info(context.WithoutCancel(ctx), "ingest", "loop.stop",
		slog.Int("cursor", st.Cursor),
		slog.Uint64("processed", st.Processed),
		slog.Uint64("failed", st.Failed),
		slog.Uint64("duplicates", st.Duplicates),
	)
	return nil
}

// Poll performs one fetch and processes the resulting batch. A fetch error is
// logged and returned; the loop treats it as an empty batch.
func (l *Loop) Poll(ctx context.Context) error {
	cursor := int(l.cursor.Load())
	events, err := l.fetcher.Fetch(ctx, cursor, l.pollTimeout)
	if err != nil {
		if ctx.Err() == nil {
			l.fetchErrs.Add(1)
			logger.Warn(ctx, "ingest", "fetch.failed",
				slog.String("status", "fail"),
				slog.Int("cursor", cursor),
				slog.String("err", gateway.Redact(err.Error())),
				slog.String("err_kind", gateway.Classify(err)),
				slog.Duration("backoff", l.errorBackoff),
			)
		}
		return err
	}
	if len(events) == 0 {
		return nil
	}
	l.batches.Add(1)

	start := time.Now()
	l.process(context.WithoutCancel(ctx), events)
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "ingest", "batch.done",
			slog.Int("batch", len(events)),
			slog.Int("cursor", l.Stats().Cursor),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func (l *Loop) process(ctx context.Context, events []gateway.Event) {
	fresh := l.dedupe(events)
	if len(fresh) == 0 {
		return
	}
	if l.workers > 1 {
		l.processSharded(ctx, fresh)
		return
	}
	for _, ev := range fresh {
		l.dispatch(ctx, ev)
		l.advance(ev.UpdateID + 1)
	}
}

// dedupe drops events below the cursor or not above an earlier event of the batch.
func (l *Loop) dedupe(events []gateway.Event) []gateway.Event {
	next := int(l.cursor.Load())
	fresh := make([]gateway.Event, 0, len(events))
	for _, ev := range events {
		if ev.UpdateID < next {
			l.duplicates.Add(1)
			continue
		}
		fresh = append(fresh, ev)
		next = ev.UpdateID + 1
	}
	return fresh
}

// advance moves the cursor forward; it never decreases.
func (l *Loop) advance(next int) {
	for {
		cur := l.cursor.Load()
		if int64(next) <= cur || l.cursor.CompareAndSwap(cur, int64(next)) {
			return
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, ev gateway.Event) {
	rid := logger.BuildRID(ev.UpdateID, ev.ChatID, ev.SenderID)
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, ev.UpdateID, ev.SenderID, ev.ChatID)

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "ingest", "update.received",
			slog.Bool("has_message", ev.HasMessage),
		)
	}

	start := time.Now()
	err := l.safeHandle(ctx, ev)
	l.processed.Add(1)
	if err != nil {
		l.failed.Add(1)
		logger.Warn(ctx, "ingest", "update.failed",
			slog.String("status", "fail"),
			slog.String("err", gateway.Redact(err.Error())),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func (l *Loop) safeHandle(ctx context.Context, ev gateway.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "ingest", "update.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return l.handler.Handle(ctx, ev)
}

// sleep waits for d and reports false when ctx ended first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
