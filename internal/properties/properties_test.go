package properties

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saturn/internal/index"
	"saturn/internal/ontology"
)

func indexed(t *testing.T, axioms ...ontology.Axiom) *index.Index {
	t.Helper()
	x := index.New()
	for _, ax := range axioms {
		_, err := x.Index(ax)
		require.NoError(t, err, ax.String())
	}
	return x
}

func relation(t *testing.T, x *index.Index, name string) index.RelationID {
	t.Helper()
	r, ok := x.LookupRelation(name)
	require.True(t, ok, name)
	return r
}

func composition(t *testing.T, x *index.Index, left, right index.RelationID) index.RelationID {
	t.Helper()
	for _, c := range x.ToldFacts().Compositions {
		if c.Left == left && c.Right == right {
			return c.ID
		}
	}
	t.Fatalf("no composition %d o %d", left, right)
	return index.NoRelation
}

func compute(t *testing.T, x *index.Index, policy ChainPolicy) *Saturation {
	t.Helper()
	s, err := Compute(context.Background(), x.ToldFacts(), policy)
	require.NoError(t, err)
	return s
}

func TestComputeSubPropertyClosure(t *testing.T) {
	x := indexed(t,
		ontology.SubPropertyOf("R", "S"),
		ontology.SubPropertyOf("S", "T"),
		ontology.DeclareProperty("U"),
	)
	s := compute(t, x, ChainPolicyDirect)
	r, sp, tp, u := relation(t, x, "R"), relation(t, x, "S"), relation(t, x, "T"), relation(t, x, "U")

	assert.True(t, s.IsSubRelation(r, tp))
	assert.True(t, s.IsSubRelation(r, r), "closure is reflexive")
	assert.False(t, s.IsSubRelation(tp, r))
	assert.False(t, s.IsSubRelation(u, tp))
	assert.ElementsMatch(t, []index.RelationID{r, sp, tp}, s.SubRelations(tp))
	assert.Equal(t, []index.RelationID{u}, s.SubRelations(u))
	assert.Equal(t, []index.RelationID{sp}, s.Record(r).ToldSupers)
	assert.False(t, s.LeftComposable(r))
	assert.False(t, s.RightComposable(r))
}

func TestComputeEmpty(t *testing.T) {
	s := compute(t, index.New(), ChainPolicyDirect)
	assert.Empty(t, s.Relations())
	assert.Nil(t, s.Record(0))
	assert.Nil(t, s.SubRelations(3))
	assert.False(t, s.Reflexive(0))
}

func TestComputeTransitivity(t *testing.T) {
	x := indexed(t, ontology.TransitiveProperty("partOf"))
	s := compute(t, x, ChainPolicyDirect)
	p := relation(t, x, "partOf")
	pp := composition(t, x, p, p)

	assert.True(t, s.IsSubRelation(pp, p))
	assert.Equal(t, []index.RelationID{pp}, s.Composes(p, p))
	assert.Equal(t, []index.RelationID{pp}, s.Composes(pp, p), "composition is a sub-relation of the left component")
	assert.Equal(t, []index.RelationID{pp}, s.Composes(p, pp))
	assert.True(t, s.LeftComposable(p))
	assert.True(t, s.RightComposable(p))
	assert.True(t, s.Record(pp).Composition)
	assert.False(t, s.Record(pp).RightComponent)
}

func TestComputeChain(t *testing.T) {
	x := indexed(t,
		ontology.SubPropertyChainOf([]string{"R", "S"}, "T"),
		ontology.SubPropertyOf("Q", "R"),
	)
	s := compute(t, x, ChainPolicyDirect)
	r, sp, tp, q := relation(t, x, "R"), relation(t, x, "S"), relation(t, x, "T"), relation(t, x, "Q")
	rs := composition(t, x, r, sp)

	assert.Equal(t, []index.RelationID{rs}, s.Composes(r, sp))
	assert.Equal(t, []index.RelationID{rs}, s.Composes(q, sp))
	assert.Empty(t, s.Composes(sp, r))
	assert.True(t, s.IsSubRelation(rs, tp))
	assert.True(t, s.LeftComposable(q))
	assert.False(t, s.RightComposable(r))
	assert.True(t, s.RightComposable(sp))
}

func TestComputeLongChainIsRightNested(t *testing.T) {
	x := indexed(t, ontology.SubPropertyChainOf([]string{"A", "B", "C"}, "D"))
	s := compute(t, x, ChainPolicyDirect)
	a, b, c := relation(t, x, "A"), relation(t, x, "B"), relation(t, x, "C")
	bc := composition(t, x, b, c)
	abc := composition(t, x, a, bc)

	assert.Equal(t, []index.RelationID{bc}, s.Composes(b, c))
	assert.Equal(t, []index.RelationID{abc}, s.Composes(a, bc))
	assert.True(t, s.Record(bc).RightComponent)
	assert.True(t, s.RightComposable(bc))
	assert.False(t, s.Record(abc).RightComponent)
}

func TestComputeReflexivity(t *testing.T) {
	x := indexed(t,
		ontology.ReflexiveProperty("R"),
		ontology.SubPropertyOf("R", "S"),
		ontology.SubPropertyChainOf([]string{"P", "R"}, "T"),
		ontology.SubPropertyChainOf([]string{"R", "S"}, "V"),
	)
	s := compute(t, x, ChainPolicyDirect)
	r, sp, p, tp, v := relation(t, x, "R"), relation(t, x, "S"), relation(t, x, "P"), relation(t, x, "T"), relation(t, x, "V")

	assert.True(t, s.Reflexive(r))
	assert.True(t, s.Reflexive(sp), "reflexivity is inherited by super-properties")
	assert.False(t, s.Reflexive(p))
	assert.True(t, s.IsSubRelation(p, tp), "P o R with R reflexive contains P")
	assert.True(t, s.Reflexive(v), "composition of reflexive properties is reflexive")
	assert.True(t, s.IsSubRelation(sp, v), "R o S with R reflexive contains S")
}

func TestChainPolicyToldSuper(t *testing.T) {
	x := indexed(t,
		ontology.SubPropertyChainOf([]string{"R", "S"}, "T"),
		ontology.SubPropertyChainOf([]string{"A", "B", "C"}, "D"),
	)
	r, sp, tp := relation(t, x, "R"), relation(t, x, "S"), relation(t, x, "T")
	rs := composition(t, x, r, sp)
	bc := composition(t, x, relation(t, x, "B"), relation(t, x, "C"))

	direct := compute(t, x, ChainPolicyDirect)
	assert.Equal(t, []index.RelationID{rs}, direct.LinkTargets(rs))
	assert.True(t, direct.Carries(rs))
	assert.False(t, direct.ChainTarget(tp))

	told := compute(t, x, ChainPolicyToldSuper)
	assert.Equal(t, []index.RelationID{tp}, told.LinkTargets(rs))
	assert.False(t, told.Carries(rs))
	assert.True(t, told.ChainTarget(tp))
	assert.Equal(t, []index.RelationID{bc}, told.LinkTargets(bc), "right components are kept")
	assert.True(t, told.Carries(bc))
	assert.Equal(t, []index.RelationID{r}, told.LinkTargets(r))
	assert.Nil(t, told.LinkTargets(99))
}

func TestDiff(t *testing.T) {
	x := indexed(t,
		ontology.SubPropertyOf("R", "S"),
		ontology.DeclareProperty("U"),
	)
	before := compute(t, x, ChainPolicyDirect)
	assert.Empty(t, Diff(before, before))

	_, err := x.Index(ontology.SubPropertyOf("S", "T"))
	require.NoError(t, err)
	after := compute(t, x, ChainPolicyDirect)

	r, sp, tp, u := relation(t, x, "R"), relation(t, x, "S"), relation(t, x, "T"), relation(t, x, "U")
	changed := Diff(before, after)
	assert.Contains(t, changed, r)
	assert.Contains(t, changed, sp)
	assert.Contains(t, changed, tp, "new relation")
	assert.NotContains(t, changed, u)

	toldSuper := compute(t, x, ChainPolicyToldSuper)
	assert.Len(t, Diff(after, toldSuper), len(after.Relations()))
}

func TestParseChainPolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    ChainPolicy
		wantErr bool
	}{
		{"", ChainPolicyDirect, false},
		{"direct", ChainPolicyDirect, false},
		{"told_super", ChainPolicyToldSuper, false},
		{"bogus", ChainPolicyDirect, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChainPolicy(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.name != "" {
				assert.Equal(t, tt.name, got.String())
			}
		})
	}
}
