package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saturn/internal/ontology"
)

var (
	A = ontology.Class("A")
	B = ontology.Class("B")
	C = ontology.Class("C")
	D = ontology.Class("D")
)

func mustIndex(t *testing.T, x *Index, ax ontology.Axiom) AxiomID {
	t.Helper()
	id, err := x.Index(ax)
	require.NoError(t, err)
	return id
}

func mustLookup(t *testing.T, x *Index, e ontology.ClassExpr) *Node {
	t.Helper()
	id, ok := x.Lookup(e)
	require.True(t, ok, "no node for %s", e)
	return x.Node(id)
}

func TestHashConsing(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.SubClassOf(ontology.And(A, B), C))
	mustIndex(t, x, ontology.SubClassOf(ontology.And(B, A, A), D))

	ab := mustLookup(t, x, ontology.And(A, B))
	ba := mustLookup(t, x, ontology.And(B, A))
	assert.Same(t, ab, ba)
	assert.Equal(t, KindConjunction, ab.Kind)
	assert.Equal(t, 2, ab.Negative())

	// n-ary conjunctions are right-nested and flattened
	mustIndex(t, x, ontology.SubClassOf(ontology.And(C, ontology.And(A, B)), D))
	abc := mustLookup(t, x, ontology.And(A, B, C))
	inner := x.Node(abc.Operands[1])
	assert.Equal(t, KindConjunction, inner.Kind)
	assert.Equal(t, "ObjectIntersectionOf(A ObjectIntersectionOf(B C))", abc.String())

	id, ok := x.Lookup(ontology.And(A))
	require.True(t, ok)
	assert.Equal(t, mustLookup(t, x, A).ID, id)

	_, ok = x.Lookup(ontology.Class("Z"))
	assert.False(t, ok)
}

func TestOccurrenceCounters(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.SubClassOf(A, ontology.Some("R", B)))

	a := mustLookup(t, x, A)
	some := mustLookup(t, x, ontology.Some("R", B))
	b := mustLookup(t, x, B)
	r, ok := x.LookupRelation("R")
	require.True(t, ok)

	assert.Equal(t, 0, a.Positive())
	assert.Equal(t, 1, a.Negative())
	assert.Equal(t, 1, some.Positive())
	assert.Equal(t, 1, b.Positive())
	assert.True(t, b.HasPositiveExistential(r))
	assert.Empty(t, b.NegativeExistentials())
	require.Len(t, a.ToldSupers(), 1)
	assert.Equal(t, some.ID, a.ToldSupers()[0].Super)
	assert.Equal(t, b.ID, some.Filler())
}

func TestHooksFollowTransitions(t *testing.T) {
	x := New()
	ax1 := ontology.SubClassOf(ontology.Some("R", B), C)
	ax2 := ontology.SubClassOf(ontology.Some("R", B), D)
	mustIndex(t, x, ax1)
	x.TakeChanges()

	b := mustLookup(t, x, B)
	some := mustLookup(t, x, ontology.Some("R", B))
	assert.Equal(t, []NodeID{some.ID}, b.NegativeExistentials())

	mustIndex(t, x, ax2)
	ch := x.TakeChanges()
	assert.Equal(t, []NodeID{some.ID}, b.NegativeExistentials(), "second occurrence must not register twice")
	assert.NotContains(t, ch.Hooked, b.ID)
	assert.Contains(t, ch.Hooked, some.ID, "told edge added to the existential")

	require.NoError(t, x.Deindex(ax1))
	assert.Equal(t, []NodeID{some.ID}, b.NegativeExistentials())
	ch = x.TakeChanges()
	assert.NotContains(t, ch.Unhooked, b.ID)

	require.NoError(t, x.Deindex(ax2))
	assert.Empty(t, b.NegativeExistentials())
	ch = x.TakeChanges()
	assert.Contains(t, ch.Unhooked, b.ID)
	assert.Contains(t, ch.Died, some.ID)
	assert.False(t, some.Alive())
	_, ok := x.Lookup(ontology.Some("R", B))
	assert.False(t, ok)
}

func TestConjunctionHooks(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.SubClassOf(ontology.And(A, B), C))

	a, b := mustLookup(t, x, A), mustLookup(t, x, B)
	conj := mustLookup(t, x, ontology.And(A, B))
	got, ok := a.ConjunctionWith(b.ID)
	require.True(t, ok)
	assert.Equal(t, conj.ID, got)
	got, ok = b.ConjunctionWith(a.ID)
	require.True(t, ok)
	assert.Equal(t, conj.ID, got)

	// positive conjunctions register nothing
	mustIndex(t, x, ontology.SubClassOf(D, ontology.And(C, A)))
	_, ok = a.ConjunctionWith(mustLookup(t, x, C).ID)
	assert.False(t, ok)
}

func TestUnionAndComplementHooks(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.SubClassOf(ontology.Or(A, B), C))
	mustIndex(t, x, ontology.SubClassOf(D, ontology.Not(A)))

	a := mustLookup(t, x, A)
	union := mustLookup(t, x, ontology.Or(A, B))
	assert.Equal(t, []NodeID{union.ID}, a.NegativeUnions())
	assert.Equal(t, []NodeID{union.ID}, mustLookup(t, x, B).NegativeUnions())

	comp, ok := a.Complement()
	require.True(t, ok)
	assert.Equal(t, KindComplement, x.Node(comp).Kind)
	assert.Equal(t, 2, a.Negative(), "complement flips polarity")
	assert.Equal(t, 0, a.Positive())
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		ax   ontology.Axiom
	}{
		{"union on the right", ontology.SubClassOf(A, ontology.Or(B, C))},
		{"complement on the left", ontology.SubClassOf(ontology.Not(A), B)},
		{"nested union under existential", ontology.SubClassOf(A, ontology.Some("R", ontology.Or(B, C)))},
		{"union inside complement on the right", ontology.SubClassOf(A, ontology.Not(ontology.Not(ontology.Or(B, C))))},
		{"union in equivalence", ontology.EquivalentClasses(A, ontology.Or(B, C))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := New()
			before := x.NumNodes()
			_, err := x.Index(tt.ax)
			assert.ErrorIs(t, err, ErrUnsupportedConstruct)
			assert.Equal(t, before, x.NumNodes(), "failed axiom must not touch the index")
			assert.True(t, x.TakeChanges().Empty())
		})
	}
}

func TestIdempotentIndexing(t *testing.T) {
	x := New()
	ax := ontology.SubClassOf(A, ontology.Some("R", B))
	mustIndex(t, x, ax)
	some := mustLookup(t, x, ontology.Some("R", B))

	_, err := x.Index(ax)
	assert.ErrorIs(t, err, ErrDuplicateAxiom)
	assert.Equal(t, 1, some.Positive())
	assert.Len(t, mustLookup(t, x, A).ToldSupers(), 1)

	_, err = x.Index(ontology.EquivalentClasses(A, B))
	require.NoError(t, err)
	_, err = x.Index(ontology.EquivalentClasses(B, A))
	assert.ErrorIs(t, err, ErrDuplicateAxiom)
}

func TestDeindexUnknown(t *testing.T) {
	x := New()
	err := x.Deindex(ontology.SubClassOf(A, B))
	assert.ErrorIs(t, err, ErrUnknownAxiom)
}

func TestDeindexEquivalenceInAnotherOrder(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.EquivalentClasses(A, B, C))
	require.NoError(t, x.Deindex(ontology.EquivalentClasses(C, A, B)))

	for _, e := range []ontology.ClassExpr{A, B, C} {
		_, ok := x.Lookup(e)
		assert.False(t, ok)
	}
	assert.Empty(t, x.Axioms())
}

func TestPropertyFacts(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.SubPropertyOf("R", "S"))
	mustIndex(t, x, ontology.ReflexiveProperty("S"))
	mustIndex(t, x, ontology.TransitiveProperty("T"))
	mustIndex(t, x, ontology.SubPropertyChainOf([]string{"R", "S", "T"}, "U"))
	ch := x.TakeChanges()
	assert.True(t, ch.PropertiesChanged)

	f := x.ToldFacts()
	r, _ := x.LookupRelation("R")
	s, _ := x.LookupRelation("S")
	tt, _ := x.LookupRelation("T")
	u, _ := x.LookupRelation("U")

	assert.Contains(t, f.ToldSubs, [2]RelationID{r, s})
	assert.Equal(t, []RelationID{s}, f.Reflexive)
	require.Len(t, f.Compositions, 3) // T∘T, S∘T, R∘(S∘T)

	var tt2, rst Composition
	for _, c := range f.Compositions {
		if c.Left == tt && c.Right == tt {
			tt2 = c
		}
		if c.Left == r {
			rst = c
		}
	}
	assert.Contains(t, f.ToldSubs, [2]RelationID{tt2.ID, tt})
	assert.Contains(t, f.ToldSubs, [2]RelationID{rst.ID, u})
	assert.True(t, x.Relation(rst.ID).IsComposition())
	assert.Equal(t, "ObjectPropertyChain(R S T)", x.Relation(rst.ID).String())
	assert.Equal(t, []RelationID{u}, x.ToldSuperProperties(rst.ID))

	require.NoError(t, x.Deindex(ontology.ReflexiveProperty("S")))
	assert.True(t, x.TakeChanges().PropertiesChanged)
	assert.Empty(t, x.ToldFacts().Reflexive)
}

func TestAssertionsAndDisjointness(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.ClassAssertion(A, "a"))
	mustIndex(t, x, ontology.PropertyAssertion("R", "a", "b"))
	mustIndex(t, x, ontology.DisjointClasses(A, B, C))
	mustIndex(t, x, ontology.DeclareIndividual("c"))

	assert.Len(t, x.Individuals(), 3)
	a := mustLookup(t, x, ontology.Nominal("a"))
	assert.Equal(t, KindIndividual, a.Kind)
	assert.Len(t, a.ToldSupers(), 2)

	for _, pair := range [][2]ontology.ClassExpr{{A, B}, {A, C}, {B, C}} {
		conj := mustLookup(t, x, ontology.And(pair[0], pair[1]))
		require.Len(t, conj.ToldSupers(), 1)
		assert.Equal(t, Nothing, conj.ToldSupers()[0].Super)
	}
}

func TestClassesIncludeBuiltins(t *testing.T) {
	x := New()
	mustIndex(t, x, ontology.DeclareClass("A"))
	classes := x.Classes()
	assert.Contains(t, classes, Thing)
	assert.Contains(t, classes, Nothing)
	assert.Len(t, classes, 3)

	require.NoError(t, x.Deindex(ontology.DeclareClass("A")))
	assert.Len(t, x.Classes(), 2)
}
