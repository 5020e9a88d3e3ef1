package ingest

import (
	"context"
	"sync"

	"github.com/m3rciful/bingobot/internal/gateway"
)

// processSharded splits a batch into per-worker queues keyed by chat id, so
// one chat is always served by one worker in arrival order. The cursor moves
// past the batch only after every queue is drained.
func (l *Loop) processSharded(ctx context.Context, events []gateway.Event) {
	queues := make([][]gateway.Event, l.workers)
	for _, ev := range events {
		i := shard(ev.ChatID, l.workers)
		queues[i] = append(queues[i], ev)
	}

	var wg sync.WaitGroup
	for _, q := range queues {
		if len(q) == 0 {
			continue
		}
		wg.Add(1)
		go func(q []gateway.Event) {
			defer wg.Done()
			for _, ev := range q {
				l.dispatch(ctx, ev)
			}
		}(q)
	}
	wg.Wait()

	l.advance(events[len(events)-1].UpdateID + 1)
}

func shard(chatID int64, n int) int {
	i := chatID % int64(n)
	if i < 0 {
		i = -i
	}
	return int(i)
}
