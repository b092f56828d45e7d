package saturation

import (
	"fmt"

	"saturn/internal/index"
)

// Kind tags a conclusion variant.
type Kind uint8

const (
	KindContextInit Kind = iota
	KindComposedSubsumer
	KindDecomposedSubsumer
	KindBackwardLink
	KindForwardLink
	KindPropagation
	KindNegatedSubsumer
	KindDisjunction
	KindNegativePropagation
	KindClash
	KindPropagatedClash

	numKinds
)

var kindNames = [numKinds]string{
	KindContextInit:         "context_init",
	KindComposedSubsumer:    "composed_subsumer",
	KindDecomposedSubsumer:  "decomposed_subsumer",
	KindBackwardLink:        "backward_link",
	KindForwardLink:         "forward_link",
	KindPropagation:         "propagation",
	KindNegatedSubsumer:     "negated_subsumer",
	KindDisjunction:         "disjunction",
	KindNegativePropagation: "negative_propagation",
	KindClash:               "clash",
	KindPropagatedClash:     "propagated_clash",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds returns every conclusion kind.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Conclusion is one derived fact about the context rooted at Context. It is
// a comparable value; fields a variant does not use hold NoNode or
// NoRelation so equal facts compare equal.
//
//	ContextInit                 -
//	ComposedSubsumer(D)         Expr=D
//	DecomposedSubsumer(D)       Expr=D
//	BackwardLink(source, R)     Peer=source, Relation=R  (stored in the target)
//	ForwardLink(R, target)      Peer=target, Relation=R  (stored in the source)
//	Propagation(R, ∃S.D)        Relation=R, Expr=∃S.D
//	NegatedSubsumer(D)          Expr=D
//	Disjunction(U, d)           Expr=U, Aux=d
//	NegativePropagation(∃R.D)   Expr=∃R.D
//	Clash                       -
//	PropagatedClash(X)          Peer=X
type Conclusion struct {
	Kind     Kind
	Context  index.NodeID
	Expr     index.NodeID
	Relation index.RelationID
	Peer     index.NodeID
	Aux      index.NodeID
}

func base(kind Kind, ctx index.NodeID) Conclusion {
	return Conclusion{Kind: kind, Context: ctx, Expr: index.NoNode, Relation: index.NoRelation, Peer: index.NoNode, Aux: index.NoNode}
}

func ContextInit(ctx index.NodeID) Conclusion { return base(KindContextInit, ctx) }

func ComposedSubsumer(ctx, d index.NodeID) Conclusion {
	c := base(KindComposedSubsumer, ctx)
	c.Expr = d
	return c
}

func DecomposedSubsumer(ctx, d index.NodeID) Conclusion {
	c := base(KindDecomposedSubsumer, ctx)
	c.Expr = d
	return c
}

// BackwardLink records in target that source ⊑ ∃r.target.
func BackwardLink(target, source index.NodeID, r index.RelationID) Conclusion {
	c := base(KindBackwardLink, target)
	c.Peer = source
	c.Relation = r
	return c
}

// ForwardLink records in source that source ⊑ ∃r.target.
func ForwardLink(source index.NodeID, r index.RelationID, target index.NodeID) Conclusion {
	c := base(KindForwardLink, source)
	c.Peer = target
	c.Relation = r
	return c
}

func Propagation(ctx index.NodeID, r index.RelationID, existential index.NodeID) Conclusion {
	c := base(KindPropagation, ctx)
	c.Relation = r
	c.Expr = existential
	return c
}

func NegatedSubsumer(ctx, d index.NodeID) Conclusion {
	c := base(KindNegatedSubsumer, ctx)
	c.Expr = d
	return c
}

func Disjunction(ctx, union, disjunct index.NodeID) Conclusion {
	c := base(KindDisjunction, ctx)
	c.Expr = union
	c.Aux = disjunct
	return c
}

func NegativePropagation(ctx, existential index.NodeID) Conclusion {
	c := base(KindNegativePropagation, ctx)
	c.Expr = existential
	return c
}

func Clash(ctx index.NodeID) Conclusion { return base(KindClash, ctx) }

func PropagatedClash(ctx, from index.NodeID) Conclusion {
	c := base(KindPropagatedClash, ctx)
	c.Peer = from
	return c
}

// IsSubsumer reports whether the conclusion is a composed or decomposed
// subsumer.
func (c Conclusion) IsSubsumer() bool {
	return c.Kind == KindComposedSubsumer || c.Kind == KindDecomposedSubsumer
}

// Format renders the conclusion with node and relation labels.
func (c Conclusion) Format(x *index.Index) string {
	node := func(id index.NodeID) string { return x.Node(id).String() }
	rel := func(id index.RelationID) string { return x.Relation(id).String() }
	root := node(c.Context)
	switch c.Kind {
	case KindContextInit:
		return fmt.Sprintf("%s: init", root)
	case KindComposedSubsumer, KindDecomposedSubsumer:
		return fmt.Sprintf("%s ⊑ %s", root, node(c.Expr))
	case KindBackwardLink:
		return fmt.Sprintf("%s ⊑ ∃%s.%s", node(c.Peer), rel(c.Relation), root)
	case KindForwardLink:
		return fmt.Sprintf("%s ⊑ ∃%s.%s (forward)", root, rel(c.Relation), node(c.Peer))
	case KindPropagation:
		return fmt.Sprintf("%s: propagate %s over %s", root, node(c.Expr), rel(c.Relation))
	case KindNegatedSubsumer:
		return fmt.Sprintf("%s ⊑ ¬%s", root, node(c.Expr))
	case KindDisjunction:
		return fmt.Sprintf("%s ⊑ %s via %s", root, node(c.Expr), node(c.Aux))
	case KindNegativePropagation:
		return fmt.Sprintf("%s ⊑ %s (reflexive)", root, node(c.Expr))
	case KindClash:
		return fmt.Sprintf("%s ⊑ ⊥", root)
	case KindPropagatedClash:
		return fmt.Sprintf("%s ⊑ ⊥ via %s", root, node(c.Peer))
	}
	return fmt.Sprintf("%s: %s", root, c.Kind)
}

func (c Conclusion) String() string {
	return fmt.Sprintf("%s{ctx=%d expr=%d rel=%d peer=%d aux=%d}", c.Kind, c.Context, c.Expr, c.Relation, c.Peer, c.Aux)
}
