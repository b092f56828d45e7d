package saturation

import (
	"slices"

	"saturn/internal/index"
	"saturn/internal/logging"
)

// NodeSet is a set of context roots.
type NodeSet map[index.NodeID]struct{}

// Seeds returns the contexts holding a conclusion that the index changes or
// the changed relations may invalidate, or that newly registered rules may
// extend. It must run after the index and the property saturation were
// updated and before the next run.
func (s *State) Seeds(changes index.Changes, changedRelations map[index.RelationID]struct{}) NodeSet {
	s.grow()
	seeds := make(NodeSet)
	for _, c := range s.Contexts() {
		if !s.idx.Node(c.root).Alive() {
			seeds[c.root] = struct{}{}
			continue
		}
		c.eachConclusion(func(cl Conclusion, inf Inference) {
			if _, done := seeds[c.root]; done {
				return
			}
			if s.affected(cl, changes, changedRelations) || !s.valid(cl, inf) {
				seeds[c.root] = struct{}{}
			}
		})
	}
	return seeds
}

func (s *State) affected(cl Conclusion, changes index.Changes, changed map[index.RelationID]struct{}) bool {
	if _, ok := changed[cl.Relation]; ok {
		return true
	}
	if !cl.IsSubsumer() {
		return false
	}
	if _, ok := changes.Hooked[cl.Expr]; ok {
		return true
	}
	if _, ok := changes.Unhooked[cl.Expr]; ok {
		return true
	}
	if len(changed) == 0 {
		return false
	}
	n := s.idx.Node(cl.Expr)
	if n.Kind == index.KindExistential {
		if _, ok := changed[n.Relation]; ok {
			return true
		}
	}
	for _, e := range n.NegativeExistentials() {
		if _, ok := changed[s.idx.Node(e).Relation]; ok {
			return true
		}
	}
	return false
}

// valid reports whether the inference would still fire against the current
// index and property saturation, given its premises.
func (s *State) valid(cl Conclusion, inf Inference) bool {
	switch inf.Rule {
	case RuleToldSuper:
		return s.idx.HasAxiom(inf.Axiom)

	case RuleConjunctionComposition:
		conj, ok := s.idx.Node(inf.Premises[0].Expr).ConjunctionWith(inf.Premises[1].Expr)
		return ok && conj == cl.Expr

	case RuleExistentialDecomposition:
		return cl.Kind != KindForwardLink || s.props.RightComposable(cl.Relation)

	case RulePropagationGeneration:
		d := inf.Premises[0].Expr
		e := s.idx.Node(cl.Expr)
		return slices.Contains(s.idx.Node(d).NegativeExistentials(), cl.Expr) &&
			s.props.IsSubRelation(cl.Relation, e.Relation) &&
			s.generatesPropagation(cl.Context, cl.Relation)

	case RuleReflexiveSelf:
		if cl.Kind != KindNegativePropagation {
			return true
		}
		d := inf.Premises[0].Expr
		return slices.Contains(s.idx.Node(d).NegativeExistentials(), cl.Expr) &&
			s.props.Reflexive(s.idx.Node(cl.Expr).Relation)

	case RuleUnionComposition:
		if cl.Kind != KindDisjunction {
			return true
		}
		return slices.Contains(s.idx.Node(cl.Aux).NegativeUnions(), cl.Expr)

	case RuleLinkComposition:
		bl, fl := inf.Premises[0], inf.Premises[1]
		if cl.Kind == KindForwardLink && !s.props.RightComposable(cl.Relation) {
			return false
		}
		for _, t := range s.props.Composes(bl.Relation, fl.Relation) {
			if slices.Contains(s.props.LinkTargets(t), cl.Relation) {
				return true
			}
		}
		return false
	}
	return true
}

// Dependents extends cleared with every context holding a conclusion that
// has a premise in a cleared context, to fixpoint.
func (s *State) Dependents(cleared NodeSet) {
	deps := make(map[index.NodeID]NodeSet)
	for _, c := range s.Contexts() {
		c.eachConclusion(func(_ Conclusion, inf Inference) {
			for _, p := range inf.Premises {
				if p.Context == c.root {
					continue
				}
				set, ok := deps[p.Context]
				if !ok {
					set = make(NodeSet)
					deps[p.Context] = set
				}
				set[c.root] = struct{}{}
			}
		})
	}

	queue := make([]index.NodeID, 0, len(cleared))
	for id := range cleared {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for d := range deps[id] {
			if _, ok := cleared[d]; !ok {
				cleared[d] = struct{}{}
				queue = append(queue, d)
			}
		}
	}
}

// Clear resets the cleared contexts and drops those whose root is no
// longer indexed.
func (s *State) Clear(cleared NodeSet) (dropped int) {
	for id := range cleared {
		c := s.Context(id)
		if c == nil {
			continue
		}
		c.reset()
		if !s.idx.Node(id).Alive() {
			s.arena[id].Store(nil)
			dropped++
		}
	}
	logging.IncrementalDebug("cleared %d contexts, dropped %d", len(cleared), dropped)
	return dropped
}

// Refire re-derives the conclusions that unaffected contexts had deposited
// into cleared ones: backward links from existential decomposition and
// links from composition at an unaffected middle context.
func (s *State) Refire(cleared NodeSet) (refired int) {
	for _, c := range s.Contexts() {
		if _, ok := cleared[c.root]; ok {
			continue
		}
		for d := range c.decomposed {
			n := s.idx.Node(d)
			if n.Kind != index.KindExistential {
				continue
			}
			if _, ok := cleared[n.Filler()]; ok {
				s.decomposeExistential(c.root, n, DecomposedSubsumer(c.root, d))
				refired++
			}
		}
		for r2, targets := range c.forward {
			for e := range targets {
				if _, ok := cleared[e]; !ok {
					continue
				}
				fl := ForwardLink(c.root, r2, e)
				for r1, sources := range c.backward {
					for _, t := range s.props.Composes(r1, r2) {
						for b := range sources {
							s.composeLinks(b, t, e, BackwardLink(c.root, b, r1), fl)
							refired++
						}
					}
				}
			}
		}
	}
	return refired
}

// Reset drops every context and pending work.
func (s *State) Reset() {
	s.arena = nil
	s.work.reset()
	s.broken = nil
	s.grow()
}
