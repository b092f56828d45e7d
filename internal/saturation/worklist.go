package saturation

import "sync"

// worklist is the global FIFO of contexts with pending conclusions. It
// counts contexts that are queued or being drained; the count reaching
// zero with an empty list is quiescence.
type worklist struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*Context
	pending int
}

func newWorklist() *worklist {
	w := &worklist{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// push adds a context that just became queued.
func (w *worklist) push(c *Context) {
	w.mu.Lock()
	w.items = append(w.items, c)
	w.pending++
	w.mu.Unlock()
	w.cond.Signal()
}

// requeue returns a claimed context to the list without changing the
// pending count.
func (w *worklist) requeue(c *Context) {
	w.mu.Lock()
	w.items = append(w.items, c)
	w.mu.Unlock()
	w.cond.Signal()
}

// pop blocks until a context is available, quiescence is reached or stop
// reports true. It returns nil in the latter two cases.
func (w *worklist) pop(stop func() bool) *Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if stop() {
			return nil
		}
		if len(w.items) > 0 {
			c := w.items[0]
			w.items[0] = nil
			w.items = w.items[1:]
			return c
		}
		if w.pending == 0 {
			return nil
		}
		w.cond.Wait()
	}
}

// done releases the claim on a drained context.
func (w *worklist) done() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		w.cond.Broadcast()
	}
	w.mu.Unlock()
}

// wake makes every blocked pop re-check its stop condition.
func (w *worklist) wake() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *worklist) pendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// reset forgets every queued context.
func (w *worklist) reset() {
	w.mu.Lock()
	w.items = nil
	w.pending = 0
	w.mu.Unlock()
}
