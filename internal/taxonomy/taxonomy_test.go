package taxonomy

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"saturn/internal/index"
	"saturn/internal/ontology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource is a hand-written saturation result. Subsumer lists are
// closed under transitivity by the tests.
type fakeSource struct {
	names        []string
	individuals  map[string]bool
	subsumers    map[string][]string
	unsat        map[string]bool
	inconsistent bool
}

func (f *fakeSource) id(name string) index.NodeID {
	for i, n := range f.names {
		if n == name {
			return index.NodeID(i)
		}
	}
	panic(name)
}

func (f *fakeSource) Classes() []index.NodeID {
	var out []index.NodeID
	for i, n := range f.names {
		if !f.individuals[n] {
			out = append(out, index.NodeID(i))
		}
	}
	return out
}

func (f *fakeSource) Individuals() []index.NodeID {
	var out []index.NodeID
	for i, n := range f.names {
		if f.individuals[n] {
			out = append(out, index.NodeID(i))
		}
	}
	return out
}

func (f *fakeSource) Subsumers(id index.NodeID) []index.NodeID {
	name := f.names[id]
	out := []index.NodeID{id, f.id(ontology.ThingName)}
	for _, s := range f.subsumers[name] {
		out = append(out, f.id(s))
	}
	return out
}

func (f *fakeSource) Unsatisfiable(id index.NodeID) bool { return f.unsat[f.names[id]] }
func (f *fakeSource) Inconsistent() bool                 { return f.inconsistent }
func (f *fakeSource) Name(id index.NodeID) string        { return f.names[id] }

func source() *fakeSource {
	return &fakeSource{
		names: []string{
			ontology.ThingName, ontology.NothingName,
			"Animal", "Mammal", "Dog", "Hound", "Cat", "Unicorn", "Plant",
			"rex", "tom", "felix",
		},
		individuals: map[string]bool{"rex": true, "tom": true, "felix": true},
		subsumers: map[string][]string{
			"Mammal": {"Animal"},
			"Dog":    {"Mammal", "Animal", "Hound"},
			"Hound":  {"Mammal", "Animal", "Dog"},
			"Cat":    {"Mammal", "Animal"},
			"rex":    {"Dog", "Hound", "Mammal", "Animal"},
			"tom":    {"Cat", "Mammal", "Animal", "felix"},
			"felix":  {"Cat", "Mammal", "Animal", "tom"},
		},
		unsat: map[string]bool{ontology.NothingName: true, "Unicorn": true},
	}
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Canonical()
	}
	return out
}

func build(t *testing.T, src Source) *Taxonomy {
	t.Helper()
	tax, err := Build(context.Background(), src, 4)
	require.NoError(t, err)
	return tax
}

func TestBuildEquivalenceAndReduction(t *testing.T) {
	tax := build(t, source())

	dog, ok := tax.Node("Hound")
	require.True(t, ok)
	assert.Equal(t, []string{"Dog", "Hound"}, dog.Members())
	assert.Equal(t, "Dog", dog.Canonical())

	assert.Equal(t, []string{"Mammal"}, names(dog.DirectSupers()), "Animal is reduced away")
	mammal, _ := tax.Node("Mammal")
	assert.Equal(t, []string{"Cat", "Dog"}, names(mammal.DirectSubs()))
	animal, _ := tax.Node("Animal")
	assert.Equal(t, []string{ontology.ThingName}, names(animal.DirectSupers()))

	assert.ElementsMatch(t, []string{"Animal", "Plant"}, names(tax.Top().DirectSubs()))
	assert.Empty(t, tax.Top().DirectSupers())
}

func TestBuildBottom(t *testing.T) {
	tax := build(t, source())
	bottom := tax.Bottom()
	assert.Equal(t, []string{ontology.NothingName, "Unicorn"}, bottom.Members())
	unicorn, ok := tax.Node("Unicorn")
	require.True(t, ok)
	assert.Same(t, bottom, unicorn)
	assert.ElementsMatch(t, []string{"Cat", "Dog", "Plant"}, names(bottom.DirectSupers()), "leaves hang over bottom")
	assert.Empty(t, bottom.DirectSubs())
}

func TestBuildInstances(t *testing.T) {
	tax := build(t, source())

	rex, ok := tax.Instance("rex")
	require.True(t, ok)
	assert.Equal(t, []string{"Dog"}, names(rex.DirectTypes()))

	tom, ok := tax.Instance("felix")
	require.True(t, ok)
	assert.Equal(t, []string{"felix", "tom"}, tom.Members())
	assert.Equal(t, []string{"Cat"}, names(tom.DirectTypes()))

	mammal, _ := tax.Node("Mammal")
	assert.Empty(t, mammal.DirectInstances())
	var all []string
	for _, i := range tax.AllInstances(mammal) {
		all = append(all, i.Canonical())
	}
	assert.Equal(t, []string{"felix", "rex"}, all)
	assert.Len(t, tax.Instances(), 2)
}

func TestBuildMinimality(t *testing.T) {
	tax := build(t, source())
	for _, n := range tax.Nodes() {
		supers := n.DirectSupers()
		for _, s := range supers {
			for _, other := range supers {
				if s == other {
					continue
				}
				for _, above := range tax.AllSuperNodes(other) {
					assert.NotSame(t, s, above, "%s: direct super %s is also above %s", n, s, other)
				}
			}
		}
	}
}

func TestTraversal(t *testing.T) {
	tax := build(t, source())
	dog, _ := tax.Node("Dog")
	supers := names(tax.AllSuperNodes(dog))
	assert.Equal(t, []string{"Mammal", "Animal", ontology.ThingName}, supers)

	animal, _ := tax.Node("Animal")
	subs := names(tax.AllSubNodes(animal))
	sort.Strings(subs)
	assert.Equal(t, []string{"Cat", "Dog", "Mammal", ontology.NothingName}, subs)

	assert.True(t, tax.IsSubsumedBy("Hound", "Animal"))
	assert.True(t, tax.IsSubsumedBy("Unicorn", "Cat"))
	assert.True(t, tax.IsSubsumedBy("Plant", ontology.ThingName))
	assert.False(t, tax.IsSubsumedBy("Plant", "Animal"))
	assert.False(t, tax.IsSubsumedBy("Missing", "Animal"))
}

func TestBuildInconsistent(t *testing.T) {
	src := source()
	src.inconsistent = true
	_, err := Build(context.Background(), src, 2)
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, source(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentLookup(t *testing.T) {
	tax := build(t, source())
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				n, ok := tax.Node("Cat")
				if ok {
					_ = tax.AllSuperNodes(n)
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
