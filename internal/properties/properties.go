// Package properties saturates the property hierarchy: the reflexive
// transitive sub-property closure, reflexivity and the composition table
// the link rules consult. The closure is computed by a Datalog program.
package properties

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"saturn/internal/index"
	"saturn/internal/logging"
	"saturn/internal/mangle"
)

// Record is the saturated view of one relation.
type Record struct {
	ID             index.RelationID
	Composition    bool
	SubRelations   []index.RelationID // reflexive, sorted
	SuperRelations []index.RelationID // reflexive, sorted
	Reflexive      bool

	// Composes maps a right partner R2 to the compositions T with
	// this ∘ R2 ⊑ T.
	Composes map[index.RelationID][]index.RelationID

	LeftComposable  bool // sub-relation of the left component of a composition
	RightComposable bool // sub-relation of the right component of a composition

	ToldSupers     []index.RelationID // told super-properties
	RightComponent bool               // compositions only: right component of another composition
}

func (r *Record) equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Composition != o.Composition || r.Reflexive != o.Reflexive ||
		r.LeftComposable != o.LeftComposable || r.RightComposable != o.RightComposable ||
		r.RightComponent != o.RightComponent {
		return false
	}
	if !slices.Equal(r.SubRelations, o.SubRelations) || !slices.Equal(r.SuperRelations, o.SuperRelations) ||
		!slices.Equal(r.ToldSupers, o.ToldSupers) || len(r.Composes) != len(o.Composes) {
		return false
	}
	for k, v := range r.Composes {
		if !slices.Equal(v, o.Composes[k]) {
			return false
		}
	}
	return true
}

// Saturation is an immutable snapshot of the saturated property hierarchy
// for one index version. It is safe for concurrent reads.
type Saturation struct {
	policy  ChainPolicy
	records []*Record
	sub     map[[2]index.RelationID]struct{}

	// told super-properties standing in for replaced compositions
	chainTargets map[index.RelationID]struct{}
}

// Empty returns a saturation without relations.
func Empty(policy ChainPolicy) *Saturation {
	return &Saturation{
		policy:       policy,
		sub:          make(map[[2]index.RelationID]struct{}),
		chainTargets: make(map[index.RelationID]struct{}),
	}
}

// Compute saturates the given told facts.
func Compute(ctx context.Context, facts index.PropertyFacts, policy ChainPolicy) (*Saturation, error) {
	timer := logging.StartTimer(logging.CategoryProperties, "property saturation")
	defer timer.Stop()

	s := Empty(policy)
	if len(facts.Relations) == 0 {
		return s, nil
	}

	engine := mangle.NewEngine(mangle.DefaultConfig())
	if err := engine.LoadSchemaString(closureProgram); err != nil {
		return nil, fmt.Errorf("load property program: %w", err)
	}

	var edb []mangle.Fact
	maxID := index.RelationID(0)
	for _, r := range facts.Relations {
		edb = append(edb, mangle.Fact{Predicate: "role_relation", Args: []interface{}{int64(r)}})
		if r > maxID {
			maxID = r
		}
	}
	for _, p := range facts.ToldSubs {
		edb = append(edb, mangle.Fact{Predicate: "role_told_sub", Args: []interface{}{int64(p[0]), int64(p[1])}})
	}
	for _, r := range facts.Reflexive {
		edb = append(edb, mangle.Fact{Predicate: "role_told_reflexive", Args: []interface{}{int64(r)}})
	}
	for _, c := range facts.Compositions {
		edb = append(edb, mangle.Fact{Predicate: "role_composition", Args: []interface{}{int64(c.ID), int64(c.Left), int64(c.Right)}})
	}
	if err := engine.AddFacts(edb); err != nil {
		return nil, fmt.Errorf("add property facts: %w", err)
	}
	if err := engine.Evaluate(ctx); err != nil {
		return nil, fmt.Errorf("evaluate property program: %w", err)
	}

	s.records = make([]*Record, maxID+1)
	for _, r := range facts.Relations {
		s.records[r] = &Record{ID: r, Composes: make(map[index.RelationID][]index.RelationID)}
	}
	rec := func(id int64) (*Record, error) {
		if id < 0 || int(id) >= len(s.records) || s.records[id] == nil {
			return nil, fmt.Errorf("property program derived unknown relation %d", id)
		}
		return s.records[id], nil
	}

	subs, err := engine.GetFacts("role_sub")
	if err != nil {
		return nil, err
	}
	for _, f := range subs {
		a, b := f.Args[0].(int64), f.Args[1].(int64)
		sub, err := rec(a)
		if err != nil {
			return nil, err
		}
		super, err := rec(b)
		if err != nil {
			return nil, err
		}
		sub.SuperRelations = append(sub.SuperRelations, super.ID)
		super.SubRelations = append(super.SubRelations, sub.ID)
		s.sub[[2]index.RelationID{sub.ID, super.ID}] = struct{}{}
	}

	reflexive, err := engine.GetFacts("role_reflexive")
	if err != nil {
		return nil, err
	}
	for _, f := range reflexive {
		r, err := rec(f.Args[0].(int64))
		if err != nil {
			return nil, err
		}
		r.Reflexive = true
	}

	composes, err := engine.GetFacts("role_composes")
	if err != nil {
		return nil, err
	}
	for _, f := range composes {
		a, err := rec(f.Args[0].(int64))
		if err != nil {
			return nil, err
		}
		b, err := rec(f.Args[1].(int64))
		if err != nil {
			return nil, err
		}
		t := index.RelationID(f.Args[2].(int64))
		a.Composes[b.ID] = append(a.Composes[b.ID], t)
		a.LeftComposable = true
		b.RightComposable = true
	}

	for _, p := range facts.ToldSubs {
		if r := s.records[p[0]]; r != nil {
			r.ToldSupers = append(r.ToldSupers, p[1])
		}
	}
	for _, c := range facts.Compositions {
		s.records[c.ID].Composition = true
	}
	for _, c := range facts.Compositions {
		if right := s.records[c.Right]; right != nil && right.Composition {
			right.RightComponent = true
		}
	}

	for _, r := range s.records {
		if r == nil {
			continue
		}
		sortIDs(r.SubRelations)
		sortIDs(r.SuperRelations)
		sortIDs(r.ToldSupers)
		for k := range r.Composes {
			sortIDs(r.Composes[k])
		}
		if policy == ChainPolicyToldSuper && s.replaced(r) {
			for _, t := range r.ToldSupers {
				s.chainTargets[t] = struct{}{}
			}
		}
	}

	logging.PropertiesDebug("saturated %d relations (%d sub-property pairs, policy %s)",
		len(facts.Relations), len(s.sub), policy)
	return s, nil
}

func sortIDs(ids []index.RelationID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Policy returns the chain policy the snapshot was computed with.
func (s *Saturation) Policy() ChainPolicy { return s.policy }

// Record returns the record of a live relation, or nil.
func (s *Saturation) Record(r index.RelationID) *Record {
	if r < 0 || int(r) >= len(s.records) {
		return nil
	}
	return s.records[r]
}

// IsSubRelation reports whether sub ⊑* super.
func (s *Saturation) IsSubRelation(sub, super index.RelationID) bool {
	_, ok := s.sub[[2]index.RelationID{sub, super}]
	return ok
}

// SubRelations returns every P with P ⊑* r, r included.
func (s *Saturation) SubRelations(r index.RelationID) []index.RelationID {
	if rec := s.Record(r); rec != nil {
		return rec.SubRelations
	}
	return nil
}

// Reflexive reports whether r is reflexive.
func (s *Saturation) Reflexive(r index.RelationID) bool {
	rec := s.Record(r)
	return rec != nil && rec.Reflexive
}

// Composes returns the compositions T with r1 ∘ r2 ⊑ T.
func (s *Saturation) Composes(r1, r2 index.RelationID) []index.RelationID {
	if rec := s.Record(r1); rec != nil {
		return rec.Composes[r2]
	}
	return nil
}

// LeftComposable reports whether links by r can be the left part of a
// composition.
func (s *Saturation) LeftComposable(r index.RelationID) bool {
	rec := s.Record(r)
	return rec != nil && rec.LeftComposable
}

// RightComposable reports whether links by r can be the right part of a
// composition, i.e. whether forward links by r are needed.
func (s *Saturation) RightComposable(r index.RelationID) bool {
	rec := s.Record(r)
	return rec != nil && rec.RightComposable
}

// Relations returns the live relation ids in ascending order.
func (s *Saturation) Relations() []index.RelationID {
	var out []index.RelationID
	for _, r := range s.records {
		if r != nil {
			out = append(out, r.ID)
		}
	}
	return out
}

// Diff returns the relations whose record differs between two snapshots,
// including relations alive in only one of them.
func Diff(prev, next *Saturation) map[index.RelationID]struct{} {
	changed := make(map[index.RelationID]struct{})
	n := len(prev.records)
	if len(next.records) > n {
		n = len(next.records)
	}
	for i := 0; i < n; i++ {
		r := index.RelationID(i)
		if !prev.Record(r).equal(next.Record(r)) {
			changed[r] = struct{}{}
		}
	}
	if prev.policy != next.policy {
		for _, r := range next.Relations() {
			changed[r] = struct{}{}
		}
	}
	return changed
}
