package saturation

import (
	"fmt"

	"saturn/internal/index"
)

// apply runs every rule with cl as premise. Conclusions are only deposited,
// never processed recursively.
func (s *State) apply(c *Context, cl Conclusion) {
	switch cl.Kind {
	case KindContextInit:
		s.produce(c.root, DecomposedSubsumer(c.root, c.root), infer(RuleInit, cl))
		s.produce(c.root, ComposedSubsumer(c.root, index.Thing), infer(RuleInit, cl))

	case KindComposedSubsumer:
		_, seen := c.decomposed[cl.Expr]
		c.composed[cl.Expr] = struct{}{}
		if !seen {
			s.compose(c, cl)
		}

	case KindDecomposedSubsumer:
		_, seen := c.composed[cl.Expr]
		c.decomposed[cl.Expr] = struct{}{}
		s.decompose(c, cl)
		if !seen {
			s.compose(c, cl)
		}

	case KindBackwardLink:
		addTo(c.backward, cl.Relation, cl.Peer)
		bl := cl
		for e := range c.propagations[cl.Relation] {
			s.produce(cl.Peer, ComposedSubsumer(cl.Peer, e),
				infer(RulePropagation, bl, Propagation(c.root, cl.Relation, e)))
		}
		for r2, targets := range c.forward {
			for _, t := range s.props.Composes(cl.Relation, r2) {
				for e := range targets {
					s.composeLinks(cl.Peer, t, e, bl, ForwardLink(c.root, r2, e))
				}
			}
		}
		if c.inconsistent {
			s.produce(cl.Peer, PropagatedClash(cl.Peer, c.root), infer(RuleClashPropagation, bl, Clash(c.root)))
		}

	case KindForwardLink:
		addTo(c.forward, cl.Relation, cl.Peer)
		for r1, sources := range c.backward {
			for _, t := range s.props.Composes(r1, cl.Relation) {
				for b := range sources {
					s.composeLinks(b, t, cl.Peer, BackwardLink(c.root, b, r1), cl)
				}
			}
		}

	case KindPropagation:
		addTo(c.propagations, cl.Relation, cl.Expr)
		for y := range c.backward[cl.Relation] {
			s.produce(y, ComposedSubsumer(y, cl.Expr),
				infer(RulePropagation, BackwardLink(c.root, y, cl.Relation), cl))
		}

	case KindNegatedSubsumer:
		c.negated[cl.Expr] = struct{}{}
		if c.hasSubsumer(cl.Expr) {
			s.produce(c.root, Clash(c.root), infer(RuleContradiction, cl, c.subsumer(cl.Expr)))
		}

	case KindDisjunction:
		s.produce(c.root, ComposedSubsumer(c.root, cl.Expr), infer(RuleUnionComposition, cl))

	case KindNegativePropagation:
		s.produce(c.root, ComposedSubsumer(c.root, cl.Expr), infer(RuleReflexiveSelf, cl))

	case KindClash:
		c.inconsistent = true
		s.produce(c.root, ComposedSubsumer(c.root, index.Nothing), infer(RuleClash, cl))
		for r, sources := range c.backward {
			for y := range sources {
				s.produce(y, PropagatedClash(y, c.root), infer(RuleClashPropagation, BackwardLink(c.root, y, r), cl))
			}
		}

	case KindPropagatedClash:
		s.produce(c.root, Clash(c.root), infer(RuleClashPropagation, cl))

	default:
		panic(fmt.Sprintf("saturation: unknown conclusion kind %d", cl.Kind))
	}
}

// compose runs the rules registered on the subsumer cl.Expr.
func (s *State) compose(c *Context, cl Conclusion) {
	d := cl.Expr
	n := s.idx.Node(d)

	for _, told := range n.ToldSupers() {
		s.produce(c.root, DecomposedSubsumer(c.root, told.Super),
			Inference{Rule: RuleToldSuper, Premises: []Conclusion{cl}, Axiom: told.Axiom})
	}

	n.Conjunctions(func(partner, conj index.NodeID) {
		if c.hasSubsumer(partner) {
			s.produce(c.root, ComposedSubsumer(c.root, conj),
				infer(RuleConjunctionComposition, cl, c.subsumer(partner)))
		}
	})

	for _, e := range n.NegativeExistentials() {
		r := s.idx.Node(e).Relation
		if s.props.Reflexive(r) {
			s.produce(c.root, NegativePropagation(c.root, e), infer(RuleReflexiveSelf, cl))
		}
		for _, p := range s.props.SubRelations(r) {
			if s.generatesPropagation(c.root, p) {
				s.produce(c.root, Propagation(c.root, p, e), infer(RulePropagationGeneration, cl))
			}
		}
	}

	for _, u := range n.NegativeUnions() {
		s.produce(c.root, Disjunction(c.root, u, d), infer(RuleUnionComposition, cl))
	}

	if _, ok := n.Complement(); ok {
		if _, neg := c.negated[d]; neg {
			s.produce(c.root, Clash(c.root), infer(RuleContradiction, NegatedSubsumer(c.root, d), cl))
		}
	}

	if d == index.Nothing {
		s.produce(c.root, Clash(c.root), infer(RuleBottom, cl))
	}
}

// generatesPropagation reports whether links by p can reach root. Links
// by a named property only come from positive existentials over root or
// from replaced property chains.
func (s *State) generatesPropagation(root index.NodeID, p index.RelationID) bool {
	if !s.props.Carries(p) {
		return false
	}
	if s.idx.Relation(p).IsComposition() {
		return true
	}
	return s.idx.Node(root).HasPositiveExistential(p) || s.props.ChainTarget(p)
}

// decompose runs the structural rules of a decomposed subsumer.
func (s *State) decompose(c *Context, cl Conclusion) {
	n := s.idx.Node(cl.Expr)
	switch n.Kind {
	case index.KindConjunction:
		for _, op := range n.Operands {
			s.produce(c.root, DecomposedSubsumer(c.root, op), infer(RuleConjunctionDecomposition, cl))
		}
	case index.KindExistential:
		s.decomposeExistential(c.root, n, cl)
	case index.KindComplement:
		s.produce(c.root, NegatedSubsumer(c.root, n.Operands[0]), infer(RuleComplementDecomposition, cl))
	}
}

func (s *State) decomposeExistential(root index.NodeID, n *index.Node, cl Conclusion) {
	filler := n.Filler()
	s.produce(filler, BackwardLink(filler, root, n.Relation), infer(RuleExistentialDecomposition, cl))
	if s.props.RightComposable(n.Relation) {
		s.produce(root, ForwardLink(root, n.Relation, filler), infer(RuleExistentialDecomposition, cl))
	}
}

// composeLinks derives source ⊑ ∃t.target from a backward and a forward
// link meeting in the same context.
func (s *State) composeLinks(source index.NodeID, t index.RelationID, target index.NodeID, bl, fl Conclusion) {
	for _, r := range s.props.LinkTargets(t) {
		s.produce(target, BackwardLink(target, source, r), infer(RuleLinkComposition, bl, fl))
		if s.props.RightComposable(r) {
			s.produce(source, ForwardLink(source, r, target), infer(RuleLinkComposition, bl, fl))
		}
	}
}
