package index

// RelationID identifies a property or a binary property composition.
type RelationID int32

// NoRelation is the absent relation.
const NoRelation RelationID = -1

// Relation is a named object property or the composition Left ∘ Right,
// where Left is a named property and Right is any relation. Longer chains
// are nested to the right.
type Relation struct {
	ID    RelationID
	Name  string
	Left  RelationID
	Right RelationID

	key         string
	label       string
	occurrences int
}

// IsComposition reports whether the relation is a property composition.
func (r *Relation) IsComposition() bool { return r.Left != NoRelation }

// Alive reports whether any axiom still mentions the relation.
func (r *Relation) Alive() bool { return r.occurrences > 0 }

func (r *Relation) String() string { return r.label }
