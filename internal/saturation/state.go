// Package saturation computes the closure of per-expression contexts under
// the inference rules of the EL family. Contexts are saturated concurrently
// by a fixed pool of workers pulling from one worklist; every accepted
// conclusion records the inference that first derived it.
package saturation

import (
	"fmt"
	"sort"
	"sync/atomic"

	"saturn/internal/index"
	"saturn/internal/properties"
)

// State holds every context of one reasoning session. Runs must not
// overlap; queries are only meaningful between runs.
type State struct {
	idx   *index.Index
	props *properties.Saturation
	opts  Options

	arena []atomic.Pointer[Context]
	work  *worklist

	interrupted atomic.Bool
	processed   atomic.Int64
	broken      error
}

// NewState creates an empty saturation state over an index and its
// property saturation.
func NewState(idx *index.Index, props *properties.Saturation, opts Options) *State {
	s := &State{idx: idx, props: props, opts: opts, work: newWorklist()}
	s.grow()
	return s
}

// Index returns the expression index the state reads.
func (s *State) Index() *index.Index { return s.idx }

// Properties returns the property saturation in use.
func (s *State) Properties() *properties.Saturation { return s.props }

// SetProperties installs a recomputed property saturation. Call only
// between runs.
func (s *State) SetProperties(p *properties.Saturation) { s.props = p }

// grow extends the arena to cover nodes created since the last call.
func (s *State) grow() {
	n := s.idx.NumNodes()
	if n <= len(s.arena) {
		return
	}
	arena := make([]atomic.Pointer[Context], n)
	for i := range s.arena {
		arena[i].Store(s.arena[i].Load())
	}
	s.arena = arena
}

// Context returns the context rooted at id, or nil.
func (s *State) Context(id index.NodeID) *Context {
	if id < 0 || int(id) >= len(s.arena) {
		return nil
	}
	return s.arena[id].Load()
}

func (s *State) getCreate(id index.NodeID) *Context {
	if id < 0 || int(id) >= len(s.arena) {
		panic(fmt.Sprintf("saturation: node %d outside context arena of %d", id, len(s.arena)))
	}
	slot := &s.arena[id]
	if c := slot.Load(); c != nil {
		return c
	}
	c := newContext(id)
	if slot.CompareAndSwap(nil, c) {
		return c
	}
	return slot.Load()
}

// produce deposits a conclusion into the context of target, creating and
// initializing the context on first contact.
func (s *State) produce(target index.NodeID, cl Conclusion, inf Inference) {
	c := s.getCreate(target)
	if !c.initialized.Load() && c.initialized.CompareAndSwap(false, true) {
		c.push(pending{conclusion: ContextInit(target), inference: infer(RuleInit)})
	}
	c.push(pending{conclusion: cl, inference: inf})
	c.saturated.Store(false)
	s.schedule(c)
}

// schedule makes sure a context with pending work is on the worklist.
func (s *State) schedule(c *Context) {
	if c.state.CompareAndSwap(stateIdle, stateQueued) {
		s.work.push(c)
	}
}

// Init makes sure the context of root exists and is initialized.
func (s *State) Init(root index.NodeID) {
	s.grow()
	c := s.getCreate(root)
	if c.initialized.CompareAndSwap(false, true) {
		c.push(pending{conclusion: ContextInit(root), inference: infer(RuleInit)})
		c.saturated.Store(false)
		s.schedule(c)
	}
}

// Contexts returns every existing context ordered by root.
func (s *State) Contexts() []*Context {
	var out []*Context
	for i := range s.arena {
		if c := s.arena[i].Load(); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Subsumers returns the subsumers derived for root, sorted. An
// inconsistent root has every expression as subsumer; only the derived
// ones are returned.
func (s *State) Subsumers(root index.NodeID) []index.NodeID {
	c := s.Context(root)
	if c == nil {
		return nil
	}
	out := make([]index.NodeID, 0, len(c.composed)+len(c.decomposed))
	for d := range c.composed {
		out = append(out, d)
	}
	for d := range c.decomposed {
		if _, dup := c.composed[d]; !dup {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsSubsumedBy reports whether sub ⊑ super was derived.
func (s *State) IsSubsumedBy(sub, super index.NodeID) bool {
	c := s.Context(sub)
	if c == nil {
		return false
	}
	return c.inconsistent || c.hasSubsumer(super)
}

// Unsatisfiable reports whether root was derived unsatisfiable.
func (s *State) Unsatisfiable(root index.NodeID) bool {
	c := s.Context(root)
	return c != nil && c.inconsistent
}

// Inconsistent reports whether the ontology is inconsistent: owl:Thing or
// some individual is unsatisfiable.
func (s *State) Inconsistent() bool {
	if s.Unsatisfiable(index.Thing) {
		return true
	}
	for _, id := range s.idx.Individuals() {
		if s.Unsatisfiable(id) {
			return true
		}
	}
	return false
}

// Inference returns the recorded inference of a conclusion.
func (s *State) Inference(cl Conclusion) (Inference, bool) {
	c := s.Context(cl.Context)
	if c == nil {
		return Inference{}, false
	}
	inf, ok := c.conclusions[cl]
	return inf, ok
}

// Conclusions returns the recorded conclusions of a context.
func (s *State) Conclusions(root index.NodeID) []Conclusion {
	c := s.Context(root)
	if c == nil {
		return nil
	}
	out := make([]Conclusion, 0, len(c.conclusions))
	for cl := range c.conclusions {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b Conclusion) bool {
	switch {
	case a.Kind != b.Kind:
		return a.Kind < b.Kind
	case a.Expr != b.Expr:
		return a.Expr < b.Expr
	case a.Relation != b.Relation:
		return a.Relation < b.Relation
	case a.Peer != b.Peer:
		return a.Peer < b.Peer
	}
	return a.Aux < b.Aux
}

// Pending reports whether contexts are waiting to be drained, e.g. after
// an interrupted run.
func (s *State) Pending() bool {
	return s.work.pendingCount() > 0
}
