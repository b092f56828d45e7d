package index

import (
	"fmt"
	"sort"
	"strings"

	"saturn/internal/ontology"
)

type primKind uint8

const (
	primSubClass primKind = iota
	primSubProperty
	primReflexive
	primDeclareClass
	primDeclareIndividual
	primDeclareProperty
)

// primitive is one normalized consequence of an axiom.
type primitive struct {
	kind       primKind
	sub, super ontology.ClassExpr
	chain      []string
	superProp  string
	name       string
}

func subClass(sub, super ontology.ClassExpr) primitive {
	return primitive{kind: primSubClass, sub: sub, super: super}
}

func subProperty(chain []string, super string) primitive {
	return primitive{kind: primSubProperty, chain: chain, superProp: super}
}

// expand rewrites an axiom into primitives. Equivalences become a cycle of
// subsumptions, disjointness becomes pairwise A ⊓ B ⊑ ⊥, assertions become
// subsumptions of nominals.
func expand(ax ontology.Axiom) []primitive {
	switch ax.Kind {
	case ontology.AxiomSubClassOf:
		return []primitive{subClass(ax.Classes[0], ax.Classes[1])}
	case ontology.AxiomEquivalentClasses:
		out := make([]primitive, 0, len(ax.Classes))
		for i, c := range ax.Classes {
			out = append(out, subClass(c, ax.Classes[(i+1)%len(ax.Classes)]))
		}
		return out
	case ontology.AxiomDisjointClasses:
		var out []primitive
		for i := 0; i < len(ax.Classes); i++ {
			for j := i + 1; j < len(ax.Classes); j++ {
				out = append(out, subClass(ontology.And(ax.Classes[i], ax.Classes[j]), ontology.Nothing()))
			}
		}
		return out
	case ontology.AxiomSubPropertyOf:
		return []primitive{subProperty(ax.Properties, ax.Super)}
	case ontology.AxiomEquivalentProperties:
		out := make([]primitive, 0, len(ax.Properties))
		for i, p := range ax.Properties {
			out = append(out, subProperty([]string{p}, ax.Properties[(i+1)%len(ax.Properties)]))
		}
		return out
	case ontology.AxiomReflexiveProperty:
		return []primitive{{kind: primReflexive, name: ax.Properties[0]}}
	case ontology.AxiomTransitiveProperty:
		p := ax.Properties[0]
		return []primitive{subProperty([]string{p, p}, p)}
	case ontology.AxiomClassAssertion:
		return []primitive{subClass(ontology.Nominal(ax.Individuals[0]), ax.Classes[0])}
	case ontology.AxiomPropertyAssertion:
		return []primitive{subClass(
			ontology.Nominal(ax.Individuals[0]),
			ontology.Some(ax.Properties[0], ontology.Nominal(ax.Individuals[1])))}
	case ontology.AxiomDeclareClass:
		return []primitive{{kind: primDeclareClass, name: ax.Classes[0].Name}}
	case ontology.AxiomDeclareIndividual:
		return []primitive{{kind: primDeclareIndividual, name: ax.Individuals[0]}}
	case ontology.AxiomDeclareProperty:
		return []primitive{{kind: primDeclareProperty, name: ax.Properties[0]}}
	}
	return nil
}

func (p primitive) check() error {
	if p.kind != primSubClass {
		return nil
	}
	if err := checkPolarity(p.sub, false); err != nil {
		return err
	}
	return checkPolarity(p.super, true)
}

func checkPolarity(e ontology.ClassExpr, positive bool) error {
	switch e.Kind {
	case ontology.ExprOr:
		if positive {
			return fmt.Errorf("%w: %s on the subsumer side", ErrUnsupportedConstruct, e)
		}
	case ontology.ExprNot:
		if !positive {
			return fmt.Errorf("%w: %s on the subsumee side", ErrUnsupportedConstruct, e)
		}
		return checkPolarity(e.Operands[0], !positive)
	}
	for _, op := range e.Operands {
		if err := checkPolarity(op, positive); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) apply(p primitive, axiom AxiomID, delta int) {
	switch p.kind {
	case primSubClass:
		sub := x.walk(p.sub, false, true, delta)
		super := x.walk(p.super, true, false, delta)
		n := x.nodes[sub]
		if delta > 0 {
			n.toldSupers = append(n.toldSupers, ToldSuper{Super: super, Axiom: axiom})
			x.changes.Hooked[sub] = struct{}{}
		} else {
			n.toldSupers = removeTold(n.toldSupers, ToldSuper{Super: super, Axiom: axiom})
			x.changes.Unhooked[sub] = struct{}{}
		}
	case primSubProperty:
		sub := x.chain(p.chain, delta)
		super := x.property(p.superProp, delta)
		x.countFact(x.toldSubs, [2]RelationID{sub, super}, delta)
	case primReflexive:
		r := x.property(p.name, delta)
		before := x.toldReflexive[r]
		x.toldReflexive[r] = before + delta
		if x.toldReflexive[r] <= 0 {
			delete(x.toldReflexive, r)
		}
		if (before == 0) != (x.toldReflexive[r] == 0) {
			x.changes.PropertiesChanged = true
		}
	case primDeclareClass:
		x.walk(ontology.Class(p.name), false, false, delta)
	case primDeclareIndividual:
		x.walk(ontology.Nominal(p.name), false, false, delta)
	case primDeclareProperty:
		x.property(p.name, delta)
	}
}

func (x *Index) countFact(m map[[2]RelationID]int, k [2]RelationID, delta int) {
	before := m[k]
	m[k] = before + delta
	if m[k] <= 0 {
		delete(m, k)
	}
	if (before == 0) != (m[k] == 0) {
		x.changes.PropertiesChanged = true
	}
}

func removeTold(s []ToldSuper, t ToldSuper) []ToldSuper {
	for i, e := range s {
		if e == t {
			return append(s[:i], s[i+1:]...)
		}
	}
	panic(fmt.Sprintf("index: told subsumption %v not registered", t))
}

// walk resolves an expression to its node, creating nodes on first sight,
// and adjusts occurrence counters of the expression and all its parts.
func (x *Index) walk(e ontology.ClassExpr, pos, neg bool, delta int) NodeID {
	var id NodeID
	switch e.Kind {
	case ontology.ExprThing:
		id = Thing
	case ontology.ExprNothing:
		id = Nothing
	case ontology.ExprClass:
		id = x.getCreate("C:"+e.Name, func(n *Node) {
			n.Kind = KindClass
			n.Name = e.Name
			n.label = e.Name
		})
	case ontology.ExprNominal:
		id = x.getCreate("I:"+e.Name, func(n *Node) {
			n.Kind = KindIndividual
			n.Name = e.Name
			n.label = "ObjectOneOf(" + e.Name + ")"
		})
	case ontology.ExprAnd:
		ops := canonicalOperands(ontology.ExprAnd, e.Operands)
		switch len(ops) {
		case 0:
			id = Thing
		case 1:
			return x.walk(ops[0], pos, neg, delta)
		default:
			// right-nested binary conjunctions
			acc := x.walk(ops[len(ops)-1], pos, neg, delta)
			for i := len(ops) - 2; i >= 0; i-- {
				left := x.walk(ops[i], pos, neg, delta)
				acc = x.conjunction(left, acc)
				if i > 0 {
					x.adjust(x.nodes[acc], pos, neg, delta)
				}
			}
			id = acc
		}
	case ontology.ExprOr:
		ops := canonicalOperands(ontology.ExprOr, e.Operands)
		switch len(ops) {
		case 0:
			id = Nothing
		case 1:
			return x.walk(ops[0], pos, neg, delta)
		default:
			ids := make([]NodeID, len(ops))
			keys := make([]string, len(ops))
			labels := make([]string, len(ops))
			for i, op := range ops {
				ids[i] = x.walk(op, pos, neg, delta)
				keys[i] = x.nodes[ids[i]].key
				labels[i] = x.nodes[ids[i]].label
			}
			id = x.getCreate("or("+strings.Join(keys, ",")+")", func(n *Node) {
				n.Kind = KindUnion
				n.Operands = ids
				n.label = "ObjectUnionOf(" + strings.Join(labels, " ") + ")"
			})
		}
	case ontology.ExprNot:
		inner := x.walk(e.Operands[0], neg, pos, delta)
		in := x.nodes[inner]
		id = x.getCreate("not("+in.key+")", func(n *Node) {
			n.Kind = KindComplement
			n.Operands = []NodeID{inner}
			n.label = "ObjectComplementOf(" + in.label + ")"
		})
	case ontology.ExprSome:
		r := x.property(e.Property, delta)
		filler := x.walk(e.Operands[0], pos, neg, delta)
		rel, f := x.relations[r], x.nodes[filler]
		id = x.getCreate("some("+rel.key+","+f.key+")", func(n *Node) {
			n.Kind = KindExistential
			n.Relation = r
			n.Operands = []NodeID{filler}
			n.label = "ObjectSomeValuesFrom(" + rel.label + " " + f.label + ")"
		})
	default:
		panic(fmt.Sprintf("index: unexpected expression kind %d", e.Kind))
	}
	x.adjust(x.nodes[id], pos, neg, delta)
	return id
}

func (x *Index) conjunction(left, right NodeID) NodeID {
	l, r := x.nodes[left], x.nodes[right]
	return x.getCreate("and("+l.key+","+r.key+")", func(n *Node) {
		n.Kind = KindConjunction
		n.Operands = []NodeID{left, right}
		n.label = "ObjectIntersectionOf(" + l.label + " " + r.label + ")"
	})
}

func (x *Index) getCreate(key string, init func(*Node)) NodeID {
	if id, ok := x.byKey[key]; ok {
		return id
	}
	n := newNode(NodeID(len(x.nodes)), KindClass)
	n.key = key
	init(n)
	x.nodes = append(x.nodes, n)
	x.byKey[key] = n.ID
	return n.ID
}

// adjust changes the counters of one node and keeps its hooks in step with
// them.
func (x *Index) adjust(n *Node, pos, neg bool, delta int) {
	wasAlive := n.Alive()
	wasPos, wasNeg := n.positive > 0, n.negative > 0

	n.occurrences += delta
	if pos {
		n.positive += delta
	}
	if neg {
		n.negative += delta
	}
	if n.occurrences < 0 || n.positive < 0 || n.negative < 0 {
		panic(fmt.Sprintf("index: negative occurrence count on %s", n.label))
	}

	isPos, isNeg := n.positive > 0, n.negative > 0
	switch {
	case !wasNeg && isNeg:
		x.registerNegative(n)
	case wasNeg && !isNeg:
		x.unregisterNegative(n)
	}
	switch {
	case !wasPos && isPos:
		x.registerPositive(n)
	case wasPos && !isPos:
		x.unregisterPositive(n)
	}

	switch isAlive := n.Alive(); {
	case !wasAlive && isAlive:
		x.changes.Born[n.ID] = struct{}{}
		delete(x.changes.Died, n.ID)
	case wasAlive && !isAlive:
		x.changes.Died[n.ID] = struct{}{}
		delete(x.changes.Born, n.ID)
	}
}

func (x *Index) hooked(id NodeID)   { x.changes.Hooked[id] = struct{}{} }
func (x *Index) unhooked(id NodeID) { x.changes.Unhooked[id] = struct{}{} }

func (x *Index) registerNegative(n *Node) {
	switch n.Kind {
	case KindConjunction:
		a, b := x.nodes[n.Operands[0]], x.nodes[n.Operands[1]]
		if a.conjunctions == nil {
			a.conjunctions = make(map[NodeID]NodeID)
		}
		if b.conjunctions == nil {
			b.conjunctions = make(map[NodeID]NodeID)
		}
		a.conjunctions[b.ID] = n.ID
		b.conjunctions[a.ID] = n.ID
		x.hooked(a.ID)
		x.hooked(b.ID)
	case KindExistential:
		f := x.nodes[n.Operands[0]]
		f.existentials = append(f.existentials, n.ID)
		x.hooked(f.ID)
	case KindUnion:
		for _, d := range n.Operands {
			x.nodes[d].unions = append(x.nodes[d].unions, n.ID)
			x.hooked(d)
		}
	}
}

func (x *Index) unregisterNegative(n *Node) {
	switch n.Kind {
	case KindConjunction:
		a, b := x.nodes[n.Operands[0]], x.nodes[n.Operands[1]]
		delete(a.conjunctions, b.ID)
		delete(b.conjunctions, a.ID)
		x.unhooked(a.ID)
		x.unhooked(b.ID)
	case KindExistential:
		f := x.nodes[n.Operands[0]]
		f.existentials = removeID(f.existentials, n.ID)
		x.unhooked(f.ID)
	case KindUnion:
		for _, d := range n.Operands {
			x.nodes[d].unions = removeID(x.nodes[d].unions, n.ID)
			x.unhooked(d)
		}
	}
}

func (x *Index) registerPositive(n *Node) {
	switch n.Kind {
	case KindExistential:
		f := x.nodes[n.Operands[0]]
		if f.posRelations == nil {
			f.posRelations = make(map[RelationID]struct{})
		}
		f.posRelations[n.Relation] = struct{}{}
		x.hooked(f.ID)
	case KindComplement:
		d := x.nodes[n.Operands[0]]
		d.complement = n.ID
		x.hooked(d.ID)
	}
}

func (x *Index) unregisterPositive(n *Node) {
	switch n.Kind {
	case KindExistential:
		f := x.nodes[n.Operands[0]]
		delete(f.posRelations, n.Relation)
		x.unhooked(f.ID)
	case KindComplement:
		d := x.nodes[n.Operands[0]]
		d.complement = NoNode
		x.unhooked(d.ID)
	}
}

func removeID(s []NodeID, id NodeID) []NodeID {
	for i, e := range s {
		if e == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// property resolves a named property and adjusts its occurrence count.
func (x *Index) property(name string, delta int) RelationID {
	id := x.getCreateRelation("P:"+name, func(r *Relation) {
		r.Name = name
		r.label = name
	})
	x.adjustRelation(id, delta)
	return id
}

// chain resolves a property chain to nested compositions.
func (x *Index) chain(names []string, delta int) RelationID {
	if len(names) == 1 {
		return x.property(names[0], delta)
	}
	left := x.property(names[0], delta)
	right := x.chain(names[1:], delta)
	l, r := x.relations[left], x.relations[right]
	id := x.getCreateRelation("o("+l.key+","+r.key+")", func(c *Relation) {
		c.Left = left
		c.Right = right
		c.label = "ObjectPropertyChain(" + strings.Join(names, " ") + ")"
	})
	x.adjustRelation(id, delta)
	return id
}

func (x *Index) getCreateRelation(key string, init func(*Relation)) RelationID {
	if id, ok := x.relByKey[key]; ok {
		return id
	}
	r := &Relation{ID: RelationID(len(x.relations)), Left: NoRelation, Right: NoRelation, key: key}
	init(r)
	x.relations = append(x.relations, r)
	x.relByKey[key] = r.ID
	return r.ID
}

func (x *Index) adjustRelation(id RelationID, delta int) {
	r := x.relations[id]
	was := r.Alive()
	r.occurrences += delta
	if r.occurrences < 0 {
		panic(fmt.Sprintf("index: negative occurrence count on %s", r.label))
	}
	if was != r.Alive() {
		x.changes.PropertiesChanged = true
	}
}

// canonicalOperands flattens nested operators of the same kind, drops
// duplicates and sorts by structural key.
func canonicalOperands(kind ontology.ExprKind, ops []ontology.ClassExpr) []ontology.ClassExpr {
	var flat []ontology.ClassExpr
	var visit func([]ontology.ClassExpr)
	visit = func(es []ontology.ClassExpr) {
		for _, e := range es {
			if e.Kind == kind {
				visit(e.Operands)
				continue
			}
			flat = append(flat, e)
		}
	}
	visit(ops)

	keyed := make(map[string]ontology.ClassExpr, len(flat))
	keys := make([]string, 0, len(flat))
	for _, e := range flat {
		k := keyOf(e)
		if _, dup := keyed[k]; dup {
			continue
		}
		keyed[k] = e
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ontology.ClassExpr, len(keys))
	for i, k := range keys {
		out[i] = keyed[k]
	}
	return out
}

// keyOf computes the structural key a node for e would have.
func keyOf(e ontology.ClassExpr) string {
	switch e.Kind {
	case ontology.ExprThing:
		return "C:" + ontology.ThingName
	case ontology.ExprNothing:
		return "C:" + ontology.NothingName
	case ontology.ExprClass:
		return "C:" + e.Name
	case ontology.ExprNominal:
		return "I:" + e.Name
	case ontology.ExprAnd:
		ops := canonicalOperands(ontology.ExprAnd, e.Operands)
		switch len(ops) {
		case 0:
			return "C:" + ontology.ThingName
		case 1:
			return keyOf(ops[0])
		}
		acc := keyOf(ops[len(ops)-1])
		for i := len(ops) - 2; i >= 0; i-- {
			acc = "and(" + keyOf(ops[i]) + "," + acc + ")"
		}
		return acc
	case ontology.ExprOr:
		ops := canonicalOperands(ontology.ExprOr, e.Operands)
		switch len(ops) {
		case 0:
			return "C:" + ontology.NothingName
		case 1:
			return keyOf(ops[0])
		}
		keys := make([]string, len(ops))
		for i, op := range ops {
			keys[i] = keyOf(op)
		}
		return "or(" + strings.Join(keys, ",") + ")"
	case ontology.ExprNot:
		return "not(" + keyOf(e.Operands[0]) + ")"
	case ontology.ExprSome:
		return "some(P:" + e.Property + "," + keyOf(e.Operands[0]) + ")"
	}
	return ""
}
