package room

import (
	"context"
	"sync"
	"time"
)

// Reaper periodically deletes rooms left with zero participants past the
// retention window. Rooms on the normal lifecycle paths are removed by the
// store itself; the sweep catches state leaked by interrupted teardowns.
type Reaper struct {
	store    *Store
	interval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReaper(store *Store, interval time.Duration) *Reaper {
	return &Reaper{store: store, interval: interval, stopCh: make(chan struct{})}
}

// Start launches the sweep loop. The retention window equals the interval.
func (rp *Reaper) Start() {
	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()
		t := time.NewTicker(rp.interval)
		defer t.Stop()
		for {
			select {
			case <-rp.stopCh:
				return
			case <-t.C:
				rp.store.sweep(context.Background(), rp.interval)
			}
		}
	}()
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (rp *Reaper) Stop() {
	rp.stopOnce.Do(func() { close(rp.stopCh) })
	rp.wg.Wait()
}
