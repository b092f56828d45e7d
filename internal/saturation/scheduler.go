package saturation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"saturn/internal/logging"
)

// ErrInvariantViolation is returned when a rule or the scheduler detects
// corrupted state. The state must be discarded.
var ErrInvariantViolation = errors.New("saturation invariant violated")

// Status is the outcome of a run.
type Status int

const (
	// StatusComplete means every context is saturated.
	StatusComplete Status = iota
	// StatusInterrupted means the run stopped early; a later run resumes it.
	StatusInterrupted
	// StatusInconsistent means the run completed and the ontology is
	// inconsistent.
	StatusInconsistent
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusInterrupted:
		return "interrupted"
	case StatusInconsistent:
		return "inconsistent"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Options configures runs.
type Options struct {
	Workers          int // 0 = NumCPU
	ProgressInterval time.Duration
	Progress         func(Progress)
	// InterruptCheck is polled between conclusions in addition to the
	// interrupt flag.
	InterruptCheck func() bool
}

// Result is the outcome of Run.
type Result struct {
	Status Status
	Stats  Stats
}

const interruptCheckEvery = 64

// Interrupt asks the current run to stop after the conclusions in flight.
func (s *State) Interrupt() {
	s.interrupted.Store(true)
	s.work.wake()
}

func (s *State) stopped() bool { return s.interrupted.Load() }

// Run drains every pending context to quiescence with a pool of workers.
// Cancelling ctx interrupts the run; contexts left unsaturated stay queued.
func (s *State) Run(ctx context.Context) (Result, error) {
	if s.broken != nil {
		return Result{}, s.broken
	}
	s.grow()
	s.interrupted.Store(ctx.Err() != nil)
	stop := context.AfterFunc(ctx, s.Interrupt)
	defer stop()

	workers := s.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	runID := uuid.NewString()
	log := logging.Get(logging.CategorySaturation).With("run", runID)
	start := time.Now()
	s.processed.Store(0)
	log.Debug("%d workers, %d contexts pending", workers, s.work.pendingCount())

	done := make(chan struct{})
	progressDone := make(chan struct{})
	go s.reportProgress(runID, start, done, progressDone)

	local := make([]workerStats, workers)
	var g errgroup.Group
	for i := range local {
		w := &local[i]
		g.Go(func() error { return s.worker(w) })
	}
	err := g.Wait()
	close(done)
	<-progressDone

	stats := Stats{RunID: runID, Workers: workers, Duration: time.Since(start)}
	for i := range local {
		stats.merge(&local[i])
	}
	if err != nil {
		s.broken = err
		log.Error("run failed: %v", err)
		return Result{Stats: stats}, err
	}

	res := Result{Status: StatusComplete, Stats: stats}
	switch {
	case s.work.pendingCount() > 0:
		res.Status = StatusInterrupted
	case s.Inconsistent():
		res.Status = StatusInconsistent
	}
	if res.Status != StatusInterrupted {
		for _, c := range s.Contexts() {
			c.saturated.Store(true)
		}
	}
	log.Info("%s: %d conclusions, %d duplicates, %d contexts drained in %v",
		res.Status, stats.Conclusions, stats.Duplicates, stats.ContextsDrained, stats.Duration)
	if log.Enabled() {
		for _, k := range Kinds() {
			if n := stats.ByKind[k]; n > 0 {
				log.Debug("%s: %d", k, n)
			}
		}
	}
	return res, nil
}

func (s *State) reportProgress(runID string, start time.Time, done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	if s.opts.Progress == nil || s.opts.ProgressInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.opts.Progress(Progress{
				RunID:     runID,
				Processed: s.processed.Load(),
				Pending:   s.work.pendingCount(),
				Elapsed:   time.Since(start),
			})
		}
	}
}

func (s *State) worker(w *workerStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvariantViolation, r)
			s.Interrupt()
		}
	}()
	for {
		c := s.work.pop(s.stopped)
		if c == nil {
			return nil
		}
		if !c.state.CompareAndSwap(stateQueued, stateDraining) {
			panic(fmt.Sprintf("context %d popped in state %d", c.root, c.state.Load()))
		}
		w.drained++
		if s.drain(c, w) {
			c.state.Store(stateQueued)
			s.work.requeue(c)
			return nil
		}
		c.state.Store(stateIdle)
		if c.hasPending() && c.state.CompareAndSwap(stateIdle, stateQueued) {
			s.work.push(c)
		}
		s.work.done()
	}
}

// drain processes the queue of a claimed context until it is empty. It
// returns true when the run was interrupted first.
func (s *State) drain(c *Context, w *workerStats) bool {
	var n int64
	defer func() { s.processed.Add(n) }()
	for {
		if s.interrupted.Load() {
			return true
		}
		if s.opts.InterruptCheck != nil && n%interruptCheckEvery == 0 && s.opts.InterruptCheck() {
			s.Interrupt()
			return true
		}
		p, ok := c.pop()
		if !ok {
			return false
		}
		n++
		if _, dup := c.conclusions[p.conclusion]; dup {
			w.duplicates++
			continue
		}
		if p.conclusion.Context != c.root {
			panic(fmt.Sprintf("conclusion %s deposited into context %d", p.conclusion, c.root))
		}
		c.conclusions[p.conclusion] = p.inference
		w.byKind[p.conclusion.Kind]++
		s.apply(c, p.conclusion)
	}
}
