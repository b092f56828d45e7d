// Package index maintains the normalized, hash-consed graph of class and
// property expressions mentioned by the indexed axioms. Every node tracks
// how often it occurs on the subsumer (positive) and subsumee (negative)
// side, and the rule hooks a node carries are registered and unregistered
// exactly when those counters cross zero.
package index

import (
	"fmt"
	"sort"
	"sync"

	"saturn/internal/logging"
	"saturn/internal/ontology"
)

// AxiomID identifies an indexed axiom.
type AxiomID int32

// NoAxiom marks inferences that do not depend on a told axiom.
const NoAxiom AxiomID = -1

// Index is the expression index. Index and Deindex must not run
// concurrently with a saturation run; all other methods are safe to call
// from saturation workers.
type Index struct {
	mu sync.RWMutex

	nodes []*Node
	byKey map[string]NodeID

	relations []*Relation
	relByKey  map[string]RelationID

	axiomIDs  map[string]AxiomID
	axioms    map[AxiomID]ontology.Axiom
	nextAxiom AxiomID

	toldSubs      map[[2]RelationID]int
	toldReflexive map[RelationID]int

	changes Changes
}

// New creates an index holding only owl:Thing and owl:Nothing.
func New() *Index {
	x := &Index{
		byKey:         make(map[string]NodeID),
		relByKey:      make(map[string]RelationID),
		axiomIDs:      make(map[string]AxiomID),
		axioms:        make(map[AxiomID]ontology.Axiom),
		toldSubs:      make(map[[2]RelationID]int),
		toldReflexive: make(map[RelationID]int),
		changes:       newChanges(),
	}
	for _, name := range []string{ontology.ThingName, ontology.NothingName} {
		n := newNode(NodeID(len(x.nodes)), KindClass)
		n.Name = name
		n.key = "C:" + name
		n.label = name
		x.nodes = append(x.nodes, n)
		x.byKey[n.key] = n.ID
	}
	return x
}

// Index adds an axiom. Axioms outside the supported normal form fail with
// ErrUnsupportedConstruct and leave the index untouched; an axiom whose key
// is already indexed fails with ErrDuplicateAxiom.
func (x *Index) Index(ax ontology.Axiom) (AxiomID, error) {
	if err := ax.Validate(); err != nil {
		return NoAxiom, err
	}
	prims := expand(ax)
	for _, p := range prims {
		if err := p.check(); err != nil {
			return NoAxiom, fmt.Errorf("%s: %w", ax, err)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	key := ax.Key()
	if _, ok := x.axiomIDs[key]; ok {
		return NoAxiom, fmt.Errorf("%s: %w", key, ErrDuplicateAxiom)
	}
	id := x.nextAxiom
	x.nextAxiom++
	x.axiomIDs[key] = id
	x.axioms[id] = ax

	for _, p := range prims {
		x.apply(p, id, +1)
	}
	x.changes.AddedAxioms[id] = struct{}{}
	logging.IndexDebug("indexed axiom %d: %s", id, key)
	return id, nil
}

// Deindex removes a previously indexed axiom.
func (x *Index) Deindex(ax ontology.Axiom) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := ax.Key()
	id, ok := x.axiomIDs[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownAxiom)
	}
	// expand the stored axiom: key-equal axioms may list members in another order
	for _, p := range expand(x.axioms[id]) {
		x.apply(p, id, -1)
	}
	delete(x.axiomIDs, key)
	delete(x.axioms, id)
	x.changes.RemovedAxioms[id] = struct{}{}
	logging.IndexDebug("deindexed axiom %d: %s", id, key)
	return nil
}

// TakeChanges returns the changes accumulated since the previous call.
func (x *Index) TakeChanges() Changes {
	x.mu.Lock()
	defer x.mu.Unlock()
	c := x.changes
	x.changes = newChanges()
	return c
}

// Node returns the node with the given id.
func (x *Index) Node(id NodeID) *Node {
	return x.nodes[id]
}

// NumNodes returns the number of node ids allocated so far.
func (x *Index) NumNodes() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}

// Relation returns the relation with the given id.
func (x *Index) Relation(id RelationID) *Relation {
	return x.relations[id]
}

// NumRelations returns the number of relation ids allocated so far.
func (x *Index) NumRelations() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.relations)
}

// Lookup finds the live node of a class expression.
func (x *Index) Lookup(e ontology.ClassExpr) (NodeID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.byKey[keyOf(e)]
	if !ok || !x.nodes[id].Alive() {
		return NoNode, false
	}
	return id, true
}

// LookupRelation finds the live relation of a named property.
func (x *Index) LookupRelation(name string) (RelationID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.relByKey["P:"+name]
	if !ok || !x.relations[id].Alive() {
		return NoRelation, false
	}
	return id, true
}

// Relations returns the live relations, compositions included.
func (x *Index) Relations() []RelationID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []RelationID
	for _, r := range x.relations {
		if r.Alive() {
			out = append(out, r.ID)
		}
	}
	return out
}

// Classes returns the live named classes, owl:Thing and owl:Nothing included.
func (x *Index) Classes() []NodeID {
	return x.collect(KindClass)
}

// Individuals returns the live individuals.
func (x *Index) Individuals() []NodeID {
	return x.collect(KindIndividual)
}

func (x *Index) collect(kind Kind) []NodeID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []NodeID
	for _, n := range x.nodes {
		if n.Kind == kind && n.Alive() {
			out = append(out, n.ID)
		}
	}
	return out
}

// Axiom returns an indexed axiom by id.
func (x *Index) Axiom(id AxiomID) (ontology.Axiom, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ax, ok := x.axioms[id]
	return ax, ok
}

// HasAxiom reports whether the axiom id is still indexed.
func (x *Index) HasAxiom(id AxiomID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.axioms[id]
	return ok
}

// Axioms returns every indexed axiom in indexing order.
func (x *Index) Axioms() []ontology.Axiom {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ids := make([]AxiomID, 0, len(x.axioms))
	for id := range x.axioms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]ontology.Axiom, len(ids))
	for i, id := range ids {
		out[i] = x.axioms[id]
	}
	return out
}

// Composition is a live binary property composition.
type Composition struct {
	ID, Left, Right RelationID
}

// PropertyFacts are the told property facts the property hierarchy is
// closed over.
type PropertyFacts struct {
	Relations    []RelationID
	ToldSubs     [][2]RelationID
	Reflexive    []RelationID
	Compositions []Composition
}

// ToldFacts snapshots the live property facts.
func (x *Index) ToldFacts() PropertyFacts {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var f PropertyFacts
	for _, r := range x.relations {
		if !r.Alive() {
			continue
		}
		f.Relations = append(f.Relations, r.ID)
		if r.IsComposition() {
			f.Compositions = append(f.Compositions, Composition{ID: r.ID, Left: r.Left, Right: r.Right})
		}
	}
	for pair := range x.toldSubs {
		f.ToldSubs = append(f.ToldSubs, pair)
	}
	sort.Slice(f.ToldSubs, func(i, j int) bool {
		if f.ToldSubs[i][0] != f.ToldSubs[j][0] {
			return f.ToldSubs[i][0] < f.ToldSubs[j][0]
		}
		return f.ToldSubs[i][1] < f.ToldSubs[j][1]
	})
	for r := range x.toldReflexive {
		f.Reflexive = append(f.Reflexive, r)
	}
	sort.Slice(f.Reflexive, func(i, j int) bool { return f.Reflexive[i] < f.Reflexive[j] })
	return f
}

// ToldSuperProperties returns the told super-properties of a relation.
func (x *Index) ToldSuperProperties(r RelationID) []RelationID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []RelationID
	for pair := range x.toldSubs {
		if pair[0] == r {
			out = append(out, pair[1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
