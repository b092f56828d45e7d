package incremental

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"saturn/internal/index"
	"saturn/internal/ontology"
	"saturn/internal/properties"
	"saturn/internal/saturation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type session struct {
	idx   *index.Index
	state *saturation.State
	m     *Maintainer
}

func load(t *testing.T, policy properties.ChainPolicy, workers int, axioms ...ontology.Axiom) *session {
	t.Helper()
	idx := index.New()
	state := saturation.NewState(idx, properties.Empty(policy), saturation.Options{Workers: workers})
	s := &session{idx: idx, state: state, m: New(idx, state, policy)}
	_, err := s.m.Apply(context.Background(), Delta{Add: axioms})
	require.NoError(t, err)
	return s
}

func (s *session) subsumers() map[string][]string {
	out := make(map[string][]string)
	for _, id := range append(s.idx.Classes(), s.idx.Individuals()...) {
		key := s.idx.Node(id).String()
		if s.state.Unsatisfiable(id) {
			out[key] = []string{"⊥"}
			continue
		}
		var names []string
		for _, d := range s.state.Subsumers(id) {
			if s.idx.Node(d).IsNamed() {
				names = append(names, s.idx.Node(d).String())
			}
		}
		sort.Strings(names)
		out[key] = names
	}
	return out
}

func (s *session) subsumed(t *testing.T, sub, super ontology.ClassExpr) bool {
	t.Helper()
	a, ok := s.idx.Lookup(sub)
	require.True(t, ok, sub.String())
	b, ok := s.idx.Lookup(super)
	if !ok {
		return false
	}
	return s.state.IsSubsumedBy(a, b)
}

var (
	A = ontology.Class("A")
	B = ontology.Class("B")
	C = ontology.Class("C")
	D = ontology.Class("D")
	E = ontology.Class("E")
)

func scenario() []ontology.Axiom {
	return []ontology.Axiom{
		ontology.SubClassOf(A, ontology.Some("R", B)),
		ontology.SubClassOf(B, C),
		ontology.SubPropertyOf("R", "S"),
		ontology.SubClassOf(ontology.Some("S", C), D),
		ontology.SubClassOf(ontology.Some("S", ontology.Thing()), E),
		ontology.ReflexiveProperty("S"),
	}
}

func TestApplyScenarioRetraction(t *testing.T) {
	for _, policy := range []properties.ChainPolicy{properties.ChainPolicyDirect, properties.ChainPolicyToldSuper} {
		t.Run(policy.String(), func(t *testing.T) {
			s := load(t, policy, 4, scenario()...)
			assert.True(t, s.subsumed(t, A, D))
			assert.True(t, s.subsumed(t, A, E))
			assert.True(t, s.subsumed(t, C, D), "C ⊑ ∃S.C by reflexivity")

			rep, err := s.m.Apply(context.Background(), Delta{Remove: []ontology.Axiom{ontology.SubPropertyOf("R", "S")}})
			require.NoError(t, err)
			assert.Equal(t, 1, rep.Removed)
			assert.Positive(t, rep.ChangedRelations)
			assert.Positive(t, rep.Cleared)
			assert.Equal(t, saturation.StatusComplete, rep.Result.Status)
			assert.False(t, s.subsumed(t, A, D))
			assert.True(t, s.subsumed(t, A, ontology.Some("R", B)))
			// S stays reflexive, so every class keeps ∃S.⊤ and hence E
			assert.True(t, s.subsumed(t, A, E))
			assert.True(t, s.subsumed(t, B, D))

			_, err = s.m.Apply(context.Background(), Delta{Add: []ontology.Axiom{ontology.SubPropertyOf("R", "S")}})
			require.NoError(t, err)
			assert.True(t, s.subsumed(t, A, D))
			assert.True(t, s.subsumed(t, A, E))
		})
	}
}

func TestApplyClassRetraction(t *testing.T) {
	s := load(t, properties.ChainPolicyDirect, 2,
		ontology.SubClassOf(A, B),
		ontology.SubClassOf(B, C),
		ontology.SubClassOf(D, E),
	)
	rep, err := s.m.Apply(context.Background(), Delta{Remove: []ontology.Axiom{ontology.SubClassOf(B, C)}})
	require.NoError(t, err)
	assert.False(t, s.subsumed(t, A, C))
	assert.True(t, s.subsumed(t, A, B))
	assert.True(t, s.subsumed(t, D, E))
	a, _ := s.idx.Lookup(A)
	b, _ := s.idx.Lookup(B)
	d, _ := s.idx.Lookup(D)
	assert.Contains(t, rep.ClearedRoots, a)
	assert.Contains(t, rep.ClearedRoots, b)
	assert.NotContains(t, rep.ClearedRoots, d, "unrelated contexts are kept")
	assert.Len(t, rep.ClearedRoots, rep.Cleared)
	assert.Less(t, rep.Cleared, len(s.state.Contexts()))
	for _, name := range []string{StageChangesInit, StageDesaturation, StageContextClean, StageContextInit, StageSaturation} {
		assert.Contains(t, rep.Stages, name)
	}
}

func TestApplyDropsDeadContexts(t *testing.T) {
	s := load(t, properties.ChainPolicyDirect, 2,
		ontology.SubClassOf(A, ontology.Some("R", B)),
		ontology.SubClassOf(C, D),
	)
	b, ok := s.idx.Lookup(B)
	require.True(t, ok)
	require.NotNil(t, s.state.Context(b))

	rep, err := s.m.Apply(context.Background(), Delta{Remove: []ontology.Axiom{ontology.SubClassOf(A, ontology.Some("R", B))}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rep.Dropped, 2)
	assert.Nil(t, s.state.Context(b))
	_, ok = s.idx.Lookup(A)
	assert.False(t, ok)
}

func TestApplyReportsBadAxioms(t *testing.T) {
	s := load(t, properties.ChainPolicyDirect, 2, ontology.SubClassOf(A, B))
	rep, err := s.m.Apply(context.Background(), Delta{
		Add: []ontology.Axiom{
			ontology.SubClassOf(A, ontology.Or(B, C)),
			ontology.SubClassOf(B, C),
			ontology.SubClassOf(A, B),
		},
		Remove: []ontology.Axiom{ontology.SubClassOf(C, D)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrUnsupportedConstruct)
	assert.ErrorIs(t, err, index.ErrDuplicateAxiom)
	assert.ErrorIs(t, err, index.ErrUnknownAxiom)
	assert.Equal(t, 1, rep.Added)
	assert.True(t, s.subsumed(t, A, C), "valid axioms are still applied")
}

func TestApplyInconsistency(t *testing.T) {
	s := load(t, properties.ChainPolicyDirect, 2,
		ontology.DisjointClasses(A, B),
		ontology.ClassAssertion(A, "a"),
	)
	assert.False(t, s.state.Inconsistent())

	rep, err := s.m.Apply(context.Background(), Delta{Add: []ontology.Axiom{ontology.ClassAssertion(B, "a")}})
	require.NoError(t, err)
	assert.Equal(t, saturation.StatusInconsistent, rep.Result.Status)

	rep, err = s.m.Apply(context.Background(), Delta{Remove: []ontology.Axiom{ontology.DisjointClasses(A, B)}})
	require.NoError(t, err)
	assert.Equal(t, saturation.StatusComplete, rep.Result.Status)
	assert.False(t, s.state.Inconsistent())
}

func TestApplyResumesInterruptedRun(t *testing.T) {
	s := load(t, properties.ChainPolicyDirect, 2, ontology.DeclareClass("A"), ontology.SubClassOf(A, B))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := s.m.Apply(ctx, Delta{Add: []ontology.Axiom{ontology.SubClassOf(B, C)}})
	require.NoError(t, err)
	assert.Equal(t, saturation.StatusInterrupted, rep.Result.Status)

	rep, err = s.m.Apply(context.Background(), Delta{Remove: []ontology.Axiom{ontology.SubClassOf(A, B)}})
	require.NoError(t, err)
	assert.Equal(t, saturation.StatusComplete, rep.Result.Status)
	assert.False(t, s.subsumed(t, A, C))
	assert.True(t, s.subsumed(t, B, C))
}

// generate builds a random EL ontology over a few classes and properties.
func generate(rng *rand.Rand, classes, axioms int) []ontology.Axiom {
	props := []string{"r", "s", "t", "u"}
	class := func() ontology.ClassExpr { return ontology.Class(fmt.Sprintf("K%d", rng.Intn(classes))) }
	prop := func() string { return props[rng.Intn(len(props))] }
	individual := func() string { return fmt.Sprintf("i%d", rng.Intn(3)) }
	var expr func(depth int) ontology.ClassExpr
	expr = func(depth int) ontology.ClassExpr {
		if depth == 0 {
			return class()
		}
		switch rng.Intn(5) {
		case 0:
			return ontology.And(class(), expr(depth-1))
		case 1, 2:
			return ontology.Some(prop(), expr(depth-1))
		}
		return class()
	}

	seen := make(map[string]bool)
	var out []ontology.Axiom
	add := func(ax ontology.Axiom) {
		if !seen[ax.Key()] {
			seen[ax.Key()] = true
			out = append(out, ax)
		}
	}
	for len(out) < axioms {
		switch rng.Intn(14) {
		case 0:
			add(ontology.SubPropertyOf(prop(), prop()))
		case 1:
			add(ontology.SubPropertyChainOf([]string{prop(), prop()}, prop()))
		case 2:
			add(ontology.TransitiveProperty(prop()))
		case 3:
			add(ontology.ReflexiveProperty(prop()))
		case 4:
			add(ontology.SubClassOf(ontology.Or(class(), class()), class()))
		case 5:
			add(ontology.DisjointClasses(class(), class()))
		case 6:
			add(ontology.ClassAssertion(class(), individual()))
		case 7:
			add(ontology.PropertyAssertion(prop(), individual(), individual()))
		case 8:
			add(ontology.SubClassOf(class(), ontology.Not(class())))
		default:
			add(ontology.SubClassOf(expr(2), expr(2)))
		}
	}
	return out
}

func TestApplyMatchesFromScratch(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		for _, policy := range []properties.ChainPolicy{properties.ChainPolicyDirect, properties.ChainPolicyToldSuper} {
			t.Run(fmt.Sprintf("seed=%d/%s", seed, policy), func(t *testing.T) {
				rng := rand.New(rand.NewSource(seed))
				axioms := generate(rng, 10, 35)
				s := load(t, policy, 4, axioms[:25]...)
				current := append([]ontology.Axiom(nil), axioms[:25]...)

				for step := 0; step < 4; step++ {
					var delta Delta
					for _, ax := range current {
						if rng.Intn(5) == 0 {
							delta.Remove = append(delta.Remove, ax)
						}
					}
					for _, ax := range axioms {
						if rng.Intn(6) == 0 && !contains(current, ax) {
							delta.Add = append(delta.Add, ax)
						}
					}
					_, err := s.m.Apply(context.Background(), delta)
					require.NoError(t, err)
					current = applyDelta(current, delta)

					want := load(t, policy, 1, current...).subsumers()
					if diff := cmp.Diff(want, s.subsumers()); diff != "" {
						t.Fatalf("step %d: incremental differs from scratch (-scratch +incremental):\n%s", step, diff)
					}
				}
			})
		}
	}
}

func contains(axioms []ontology.Axiom, ax ontology.Axiom) bool {
	for _, a := range axioms {
		if a.Key() == ax.Key() {
			return true
		}
	}
	return false
}

func applyDelta(current []ontology.Axiom, d Delta) []ontology.Axiom {
	var out []ontology.Axiom
	for _, ax := range current {
		if !contains(d.Remove, ax) {
			out = append(out, ax)
		}
	}
	return append(out, d.Add...)
}
