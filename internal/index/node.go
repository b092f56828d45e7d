package index

// NodeID identifies a class-expression node. IDs are stable for the life of
// the index and never reused.
type NodeID int32

// NoNode is the absent node.
const NoNode NodeID = -1

// Built-in nodes.
const (
	Thing   NodeID = 0
	Nothing NodeID = 1
)

// Kind is the syntactic shape of a node.
type Kind uint8

const (
	KindClass Kind = iota
	KindIndividual
	KindConjunction
	KindExistential
	KindUnion
	KindComplement
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindIndividual:
		return "individual"
	case KindConjunction:
		return "conjunction"
	case KindExistential:
		return "existential"
	case KindUnion:
		return "union"
	case KindComplement:
		return "complement"
	}
	return "unknown"
}

// ToldSuper is a subsumption asserted by an axiom, attached to its subsumee.
type ToldSuper struct {
	Super NodeID
	Axiom AxiomID
}

// Node is one hash-consed class expression. Fields other than the counters
// and hooks are immutable after creation. The index only mutates nodes
// between saturation runs, so rules read hooks without locking.
type Node struct {
	ID       NodeID
	Kind     Kind
	Name     string     // class or individual name
	Operands []NodeID   // conjuncts, disjuncts, complemented node, or filler
	Relation RelationID // existential property

	key   string
	label string

	positive    int
	negative    int
	occurrences int

	toldSupers   []ToldSuper
	conjunctions map[NodeID]NodeID // partner -> negative conjunction of this node and partner
	existentials []NodeID          // negative existentials with this node as filler
	unions       []NodeID          // negative unions with this node as a disjunct
	complement   NodeID            // positive complement of this node
	posRelations map[RelationID]struct{}
}

func newNode(id NodeID, kind Kind) *Node {
	return &Node{ID: id, Kind: kind, Relation: NoRelation, complement: NoNode}
}

// String returns the functional-syntax rendering of the node.
func (n *Node) String() string { return n.label }

// Positive returns the number of subsumer-side occurrences.
func (n *Node) Positive() int { return n.positive }

// Negative returns the number of subsumee-side occurrences.
func (n *Node) Negative() int { return n.negative }

// Alive reports whether any axiom still mentions the node.
func (n *Node) Alive() bool {
	return n.ID == Thing || n.ID == Nothing || n.positive+n.negative+n.occurrences > 0
}

// IsNamed reports whether the node is a named class or an individual, i.e.
// a root that classification creates a context for.
func (n *Node) IsNamed() bool {
	return n.Kind == KindClass || n.Kind == KindIndividual
}

// Filler returns the filler of an existential.
func (n *Node) Filler() NodeID {
	if n.Kind != KindExistential {
		return NoNode
	}
	return n.Operands[0]
}

// ToldSupers returns the told subsumptions whose subsumee is this node.
func (n *Node) ToldSupers() []ToldSuper { return n.toldSupers }

// ConjunctionWith returns the negatively occurring conjunction of this node
// and partner, if any.
func (n *Node) ConjunctionWith(partner NodeID) (NodeID, bool) {
	c, ok := n.conjunctions[partner]
	return c, ok
}

// Conjunctions calls fn for every negatively occurring conjunction this
// node takes part in.
func (n *Node) Conjunctions(fn func(partner, conjunction NodeID)) {
	for p, c := range n.conjunctions {
		fn(p, c)
	}
}

// NegativeExistentials returns negatively occurring existentials that have
// this node as filler.
func (n *Node) NegativeExistentials() []NodeID { return n.existentials }

// NegativeUnions returns negatively occurring unions containing this node.
func (n *Node) NegativeUnions() []NodeID { return n.unions }

// Complement returns the positively occurring complement of this node.
func (n *Node) Complement() (NodeID, bool) {
	return n.complement, n.complement != NoNode
}

// HasPositiveExistential reports whether ∃r.n occurs positively.
func (n *Node) HasPositiveExistential(r RelationID) bool {
	_, ok := n.posRelations[r]
	return ok
}

// PositiveExistentialRelations returns the r such that ∃r.n occurs positively.
func (n *Node) PositiveExistentialRelations() []RelationID {
	out := make([]RelationID, 0, len(n.posRelations))
	for r := range n.posRelations {
		out = append(out, r)
	}
	return out
}
