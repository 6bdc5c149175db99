// Package scanengine runs a fixed-duration, concurrent probe sweep against
// one target and accumulates the results into a clue.Table.
package scanengine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snapetech/halberd/internal/clue"
	"github.com/snapetech/halberd/internal/metrics"
	"github.com/snapetech/halberd/internal/probeclient"
)

// ErrNoCluesCollected is returned when a scan's deadline passed without a
// single successful probe — every worker either errored or never got a slot.
var ErrNoCluesCollected = errors.New("scanengine: no clues collected before deadline")

// Status is delivered to a StatusFunc roughly twice a second while a scan
// runs, so a CLI can print a progress indicator.
type Status struct {
	Probes    int64
	Errors    int64
	Clues     int
	Elapsed   time.Duration
	Remaining time.Duration
}

// fatalError latches the first fatal probe error seen by any worker. The
// sentinel errors runWorker checks for aren't all wrapped the same way
// (ErrUnknownReply is returned bare; ErrConnectFailed is always wrapped with
// fmt.Errorf), so a mutex-guarded field is used instead of atomic.Value,
// which panics on a concrete-type mismatch between stores.
type fatalError struct {
	mu  sync.Mutex
	err error
}

func (f *fatalError) setOnce(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *fatalError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Task describes one scan run.
type Task struct {
	Target      string
	ScanTime    time.Duration
	Parallelism int
	// StatusFunc, if non-nil, is called roughly every 500ms with the
	// current progress. It must not block.
	StatusFunc func(Status)
}

// Scan launches Parallelism workers that repeatedly probe Target until
// ScanTime elapses or ctx is cancelled, inserting every successful probe
// into a fresh clue.Table. It returns the accumulated raw clues.
//
// A timeout on one probe says nothing about the next one, so workers treat
// it as a miss and keep going. A refused connection or a reply that doesn't
// even look like HTTP means the target isn't there or isn't speaking the
// protocol at all — every subsequent probe would fail the same way, so the
// first worker to see one of those cancels ctx and the scan ends early
// instead of running out the clock. Scan returns that error when no clue was
// collected; otherwise it returns the clues collected so far and a nil error.
func Scan(ctx context.Context, task Task) ([]clue.Clue, error) {
	parallelism := task.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	ctx, cancel := context.WithTimeout(ctx, task.ScanTime)
	defer cancel()

	table := clue.NewTable()
	var probes, probeErrs int64
	var fatal fatalError

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, cancel, task.Target, table, &probes, &probeErrs, &fatal)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	start := time.Now()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return finish(table, &fatal)
		case <-ticker.C:
			if task.StatusFunc != nil {
				deadline, _ := ctx.Deadline()
				task.StatusFunc(Status{
					Probes:    atomic.LoadInt64(&probes),
					Errors:    atomic.LoadInt64(&probeErrs),
					Clues:     table.Len(),
					Elapsed:   time.Since(start),
					Remaining: time.Until(deadline),
				})
			}
		}
	}
}

func finish(table *clue.Table, fatal *fatalError) ([]clue.Clue, error) {
	clues := table.Snapshot()
	if len(clues) == 0 {
		if err := fatal.get(); err != nil {
			return nil, err
		}
		return nil, ErrNoCluesCollected
	}
	return clues, nil
}

// runWorker probes target in a tight loop until ctx is done. A timeout is a
// recoverable miss and the loop continues; ErrConnectFailed and
// ErrUnknownReply are fatal — the target is unreachable or isn't speaking
// HTTP, so every other worker would hit the same wall. The first worker to
// observe one records it in fatal and cancels ctx, which stops the rest.
func runWorker(ctx context.Context, cancel context.CancelFunc, target string, table *clue.Table, probes, probeErrs *int64, fatal *fatalError) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := probeclient.Probe(ctx, target)
		atomic.AddInt64(probes, 1)
		if err != nil {
			atomic.AddInt64(probeErrs, 1)
			metrics.ProbesTotal.WithLabelValues("miss").Inc()
			if errors.Is(err, probeclient.ErrConnectFailed) || errors.Is(err, probeclient.ErrUnknownReply) {
				fatal.setOnce(err)
				cancel()
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		c, err := clue.Parse(res.Local, res.Fields, nil)
		if err != nil {
			atomic.AddInt64(probeErrs, 1)
			metrics.ProbesTotal.WithLabelValues("miss").Inc()
			log.Printf("scanengine: %v", err)
			continue
		}
		metrics.ProbesTotal.WithLabelValues("hit").Inc()
		table.Insert(c)
	}
}
