package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on each tick until ctx is done. A tick
// that fires while the previous run is still going is dropped, not queued.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	var busy atomic.Bool
	run := func() {
		if !busy.CompareAndSwap(false, true) {
			log.Printf("[%s] previous run still active, skipping tick", name)
			return
		}
		go func() {
			defer busy.Store(false)
			if err := task(ctx); err != nil {
				log.Printf("[%s] error: %v", name, err)
			}
		}()
	}

	// run immediately
	run()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
