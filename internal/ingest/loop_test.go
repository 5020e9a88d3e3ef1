package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/bingobot/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	events []gateway.Event
	err    error
	// after runs once the step was served, e.g. to cancel the loop.
	after func()
}

type scriptFetcher struct {
	mu      sync.Mutex
	steps   []step
	offsets []int
}

func (f *scriptFetcher) Fetch(ctx context.Context, offset int, _ time.Duration) ([]gateway.Event, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.steps) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	f.mu.Unlock()
	if s.after != nil {
		s.after()
	}
	return s.events, s.err
}

func (f *scriptFetcher) seenOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

type recorder struct {
	mu   sync.Mutex
	seen []int
	ctxs []error
}

func (r *recorder) handler(fn func(ev gateway.Event) error) HandlerFunc {
	return func(ctx context.Context, ev gateway.Event) error {
		r.mu.Lock()
		r.seen = append(r.seen, ev.UpdateID)
		r.ctxs = append(r.ctxs, ctx.Err())
		r.mu.Unlock()
		if fn == nil {
			return nil
		}
		return fn(ev)
	}
}

func (r *recorder) ids() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func events(chatID int64, ids ...int) []gateway.Event {
	out := make([]gateway.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, gateway.Event{UpdateID: id, HasMessage: true, ChatID: chatID})
	}
	return out
}

// runUntilDrained runs the loop until every scripted step was served and the
// loop is parked in the next fetch, then stops it.
func runUntilDrained(t *testing.T, l *Loop, f *scriptFetcher) {
	t.Helper()
	f.mu.Lock()
	want := len(f.steps) + 1
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(f.seenOffsets()) >= want
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestCursorAdvancesPastFailuresAndPanics(t *testing.T) {
	f := &scriptFetcher{steps: []step{{events: events(1, 10, 11, 12, 13)}}}
	rec := &recorder{}
	l, err := New(Options{
		Fetcher: f,
		Handler: rec.handler(func(ev gateway.Event) error {
			switch ev.UpdateID {
			case 11:
				return errors.New("store down")
			case 12:
				panic("boom")
			}
			return nil
		}),
	})
	require.NoError(t, err)

	require.NoError(t, l.Poll(context.Background()))
	st := l.Stats()
	assert.Equal(t, 14, st.Cursor)
	assert.EqualValues(t, 4, st.Processed)
	assert.EqualValues(t, 2, st.Failed)
	assert.Equal(t, []int{10, 11, 12, 13}, rec.ids())
}

func TestDuplicatesAreSkippedAndCursorNeverDecreases(t *testing.T) {
	f := &scriptFetcher{steps: []step{
		{events: events(1, 5, 6)},
		{events: events(1, 5, 6, 7)},
		{events: events(1, 3)},
	}}
	rec := &recorder{}
	l, err := New(Options{Fetcher: f, Handler: rec.handler(nil)})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Poll(ctx))
	require.NoError(t, l.Poll(ctx))
	require.NoError(t, l.Poll(ctx))

	assert.Equal(t, []int{5, 6, 7}, rec.ids())
	st := l.Stats()
	assert.Equal(t, 8, st.Cursor)
	assert.EqualValues(t, 3, st.Duplicates)
	assert.Equal(t, []int{0, 7, 8}, f.seenOffsets())
}

func TestEventsWithoutMessageMoveCursor(t *testing.T) {
	f := &scriptFetcher{steps: []step{{events: []gateway.Event{{UpdateID: 40}}}}}
	l, err := New(Options{Fetcher: f, Handler: HandlerFunc(func(context.Context, gateway.Event) error { return nil })})
	require.NoError(t, err)
	require.NoError(t, l.Poll(context.Background()))
	assert.Equal(t, 41, l.Stats().Cursor)
}

func TestFetchErrorBacksOffAndContinues(t *testing.T) {
	f := &scriptFetcher{steps: []step{
		{err: gateway.ErrTransport},
		{events: events(1, 1)},
	}}
	rec := &recorder{}
	l, err := New(Options{Fetcher: f, Handler: rec.handler(nil), ErrorBackoff: 10 * time.Millisecond})
	require.NoError(t, err)

	runUntilDrained(t, l, f)
	assert.Equal(t, []int{1}, rec.ids())
	st := l.Stats()
	assert.EqualValues(t, 1, st.FetchErrs)
	assert.Equal(t, 2, st.Cursor)
}

func TestShutdownFinishesFetchedBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptFetcher{steps: []step{{events: events(1, 1, 2, 3), after: cancel}}}
	rec := &recorder{}
	l, err := New(Options{Fetcher: f, Handler: rec.handler(nil)})
	require.NoError(t, err)

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, []int{1, 2, 3}, rec.ids())
	for _, e := range rec.ctxs {
		assert.NoError(t, e)
	}
	assert.Equal(t, 4, l.Stats().Cursor)
	// no fetch after cancellation
	assert.Len(t, f.seenOffsets(), 1)
}

func TestRunReturnsNilWhenCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptFetcher{steps: []step{{err: gateway.ErrTransport, after: cancel}}}
	l, err := New(Options{Fetcher: f, Handler: HandlerFunc(func(context.Context, gateway.Event) error { return nil }), ErrorBackoff: time.Hour})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("backoff ignored cancellation")
	}
}

func TestShardedWorkersKeepPerChatOrder(t *testing.T) {
	var batch []gateway.Event
	id := 100
	for round := 0; round < 20; round++ {
		for chat := int64(1); chat <= 6; chat++ {
			batch = append(batch, gateway.Event{UpdateID: id, HasMessage: true, ChatID: chat})
			id++
		}
	}
	f := &scriptFetcher{steps: []step{{events: batch}}}

	var mu sync.Mutex
	perChat := make(map[int64][]int)
	l, err := New(Options{
		Fetcher: f,
		Workers: 4,
		Handler: HandlerFunc(func(_ context.Context, ev gateway.Event) error {
			mu.Lock()
			perChat[ev.ChatID] = append(perChat[ev.ChatID], ev.UpdateID)
			mu.Unlock()
			if ev.ChatID == 3 {
				return errors.New("fails")
			}
			return nil
		}),
	})
	require.NoError(t, err)

	require.NoError(t, l.Poll(context.Background()))
	st := l.Stats()
	assert.Equal(t, id, st.Cursor)
	assert.EqualValues(t, len(batch), st.Processed)
	assert.EqualValues(t, 20, st.Failed)
	require.Len(t, perChat, 6)
	for chat, ids := range perChat {
		assert.Len(t, ids, 20, "chat %d", chat)
		assert.IsIncreasing(t, ids, "chat %d", chat)
	}
}

func TestShard(t *testing.T) {
	assert.Equal(t, 1, shard(-7, 3))
	assert.Equal(t, 1, shard(7, 3))
	assert.Equal(t, 0, shard(9, 3))
}

func TestNewValidation(t *testing.T) {
	h := HandlerFunc(func(context.Context, gateway.Event) error { return nil })
	_, err := New(Options{Handler: h})
	require.Error(t, err)
	_, err = New(Options{Fetcher: &scriptFetcher{}})
	require.Error(t, err)
	_, err = New(Options{Fetcher: &scriptFetcher{}, Handler: h, Cursor: -1})
	require.Error(t, err)

	l, err := New(Options{Fetcher: &scriptFetcher{}, Handler: h, Cursor: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, l.Stats().Cursor)
	assert.Equal(t, 1, l.workers)
	assert.Equal(t, defaultPollTimeout, l.pollTimeout)
}
