package saturation

import (
	"sync"
	"sync/atomic"

	"saturn/internal/index"
)

// scheduling states of a context
const (
	stateIdle int32 = iota
	stateQueued
	stateDraining
)

type pending struct {
	conclusion Conclusion
	inference  Inference
}

type nodeSet map[index.NodeID]struct{}

// Context is the saturation state of one root expression. Everything but
// the pending queue and the atomic flags is owned by the worker that holds
// the draining claim, or by the caller between runs.
type Context struct {
	root index.NodeID

	state       atomic.Int32
	initialized atomic.Bool
	saturated   atomic.Bool

	qmu   sync.Mutex
	queue []pending

	conclusions  map[Conclusion]Inference
	composed     nodeSet
	decomposed   nodeSet
	backward     map[index.RelationID]nodeSet // relation -> sources
	forward      map[index.RelationID]nodeSet // relation -> targets
	propagations map[index.RelationID]nodeSet // relation -> carried existentials
	negated      nodeSet
	inconsistent bool
}

func newContext(root index.NodeID) *Context {
	c := &Context{root: root}
	c.reset()
	return c
}

// reset drops all derived state, keeping the scheduling state.
func (c *Context) reset() {
	c.conclusions = make(map[Conclusion]Inference)
	c.composed = make(nodeSet)
	c.decomposed = make(nodeSet)
	c.backward = make(map[index.RelationID]nodeSet)
	c.forward = make(map[index.RelationID]nodeSet)
	c.propagations = make(map[index.RelationID]nodeSet)
	c.negated = make(nodeSet)
	c.inconsistent = false
	c.initialized.Store(false)
	c.saturated.Store(false)
	c.qmu.Lock()
	c.queue = nil
	c.qmu.Unlock()
}

// Root returns the root expression of the context.
func (c *Context) Root() index.NodeID { return c.root }

// Inconsistent reports whether the root was derived unsatisfiable.
func (c *Context) Inconsistent() bool { return c.inconsistent }

// Saturated reports whether the last run completed with no pending work
// for this context.
func (c *Context) Saturated() bool { return c.saturated.Load() }

func (c *Context) push(p pending) {
	c.qmu.Lock()
	c.queue = append(c.queue, p)
	c.qmu.Unlock()
}

func (c *Context) pop() (pending, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return pending{}, false
	}
	p := c.queue[0]
	c.queue[0] = pending{}
	c.queue = c.queue[1:]
	return p, true
}

func (c *Context) hasPending() bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue) > 0
}

func (c *Context) hasSubsumer(d index.NodeID) bool {
	if _, ok := c.composed[d]; ok {
		return true
	}
	_, ok := c.decomposed[d]
	return ok
}

// subsumer returns the recorded conclusion deriving d, preferring the
// composed one.
func (c *Context) subsumer(d index.NodeID) Conclusion {
	if _, ok := c.composed[d]; ok {
		return ComposedSubsumer(c.root, d)
	}
	return DecomposedSubsumer(c.root, d)
}

func addTo(m map[index.RelationID]nodeSet, r index.RelationID, n index.NodeID) {
	s, ok := m[r]
	if !ok {
		s = make(nodeSet)
		m[r] = s
	}
	s[n] = struct{}{}
}

// eachConclusion visits recorded and queued conclusions with their
// inferences.
func (c *Context) eachConclusion(fn func(Conclusion, Inference)) {
	for cl, inf := range c.conclusions {
		fn(cl, inf)
	}
	c.qmu.Lock()
	queued := append([]pending(nil), c.queue...)
	c.qmu.Unlock()
	for _, p := range queued {
		fn(p.conclusion, p.inference)
	}
}
