package saturation

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"saturn/internal/index"
	"saturn/internal/ontology"
	"saturn/internal/properties"
)

type fixture struct {
	idx   *index.Index
	state *State
}

func newFixture(t *testing.T, opts Options, policy properties.ChainPolicy, axioms ...ontology.Axiom) *fixture {
	t.Helper()
	idx := index.New()
	for _, ax := range axioms {
		_, err := idx.Index(ax)
		require.NoError(t, err, ax.String())
	}
	idx.TakeChanges()
	props, err := properties.Compute(context.Background(), idx.ToldFacts(), policy)
	require.NoError(t, err)
	s := NewState(idx, props, opts)
	for _, id := range idx.Classes() {
		s.Init(id)
	}
	for _, id := range idx.Individuals() {
		s.Init(id)
	}
	return &fixture{idx: idx, state: s}
}

func saturate(t *testing.T, opts Options, policy properties.ChainPolicy, axioms ...ontology.Axiom) *fixture {
	t.Helper()
	f := newFixture(t, opts, policy, axioms...)
	res, err := f.state.Run(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, StatusInterrupted, res.Status)
	return f
}

func (f *fixture) node(t *testing.T, e ontology.ClassExpr) index.NodeID {
	t.Helper()
	id, ok := f.idx.Lookup(e)
	require.True(t, ok, e.String())
	return id
}

func (f *fixture) subsumed(t *testing.T, sub, super ontology.ClassExpr) bool {
	t.Helper()
	return f.state.IsSubsumedBy(f.node(t, sub), f.node(t, super))
}

// namedSubsumers renders the subsumers of every named class and individual.
func (f *fixture) namedSubsumers() map[string][]string {
	out := make(map[string][]string)
	roots := append(f.idx.Classes(), f.idx.Individuals()...)
	for _, id := range roots {
		key := f.idx.Node(id).String()
		if f.state.Unsatisfiable(id) {
			out[key] = []string{"⊥"}
			continue
		}
		var names []string
		for _, d := range f.state.Subsumers(id) {
			if f.idx.Node(d).IsNamed() {
				names = append(names, f.idx.Node(d).String())
			}
		}
		out[key] = names
	}
	return out
}

var (
	A = ontology.Class("A")
	B = ontology.Class("B")
	C = ontology.Class("C")
	D = ontology.Class("D")
	E = ontology.Class("E")
)

// randomOntology generates a small EL ontology with chains, conjunctions,
// unions, disjointness and assertions.
func randomOntology(seed int64, classes, axioms int) []ontology.Axiom {
	rng := rand.New(rand.NewSource(seed))
	props := []string{"r", "s", "t"}
	class := func() ontology.ClassExpr { return ontology.Class(fmt.Sprintf("K%d", rng.Intn(classes))) }
	var expr func(depth int) ontology.ClassExpr
	expr = func(depth int) ontology.ClassExpr {
		if depth == 0 {
			return class()
		}
		switch rng.Intn(4) {
		case 0:
			return ontology.And(class(), expr(depth-1))
		case 1:
			return ontology.Some(props[rng.Intn(len(props))], expr(depth-1))
		default:
			return class()
		}
	}

	out := []ontology.Axiom{
		ontology.SubPropertyOf("r", "s"),
		ontology.TransitiveProperty("t"),
		ontology.SubPropertyChainOf([]string{"r", "s"}, "t"),
	}
	seen := make(map[string]bool)
	add := func(ax ontology.Axiom) {
		if !seen[ax.Key()] {
			seen[ax.Key()] = true
			out = append(out, ax)
		}
	}
	for i := 0; i < axioms; i++ {
		switch rng.Intn(10) {
		case 0:
			add(ontology.SubClassOf(ontology.Or(class(), class()), class()))
		case 1:
			add(ontology.ClassAssertion(class(), fmt.Sprintf("i%d", rng.Intn(3))))
		case 2:
			add(ontology.PropertyAssertion(props[rng.Intn(len(props))], fmt.Sprintf("i%d", rng.Intn(3)), fmt.Sprintf("i%d", rng.Intn(3))))
		default:
			add(ontology.SubClassOf(expr(2), expr(2)))
		}
	}
	return out
}
