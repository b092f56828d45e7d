// Package incremental keeps a saturation up to date under axiom additions
// and removals. Contexts whose conclusions may depend on a change are
// cleared together with everything derived from them and re-saturated;
// all other contexts keep their conclusions.
package incremental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saturn/internal/index"
	"saturn/internal/logging"
	"saturn/internal/ontology"
	"saturn/internal/properties"
	"saturn/internal/saturation"
)

// Stage names, in execution order.
const (
	StageChangesInit  = "changes_init"
	StageDesaturation = "desaturation"
	StageContextClean = "context_cleaning"
	StageContextInit  = "context_init"
	StageSaturation   = "saturation"
)

// Delta is a set of axioms to add and remove.
type Delta struct {
	Add    []ontology.Axiom
	Remove []ontology.Axiom
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool { return len(d.Add) == 0 && len(d.Remove) == 0 }

// Report describes one maintenance pass.
type Report struct {
	Added, Removed   int
	ChangedRelations int
	Seeds            int
	Cleared          int
	ClearedRoots     saturation.NodeSet // roots of the cleared contexts
	Dropped          int
	Refired          int
	Stages           map[string]time.Duration
	Result           saturation.Result
}

// Maintainer applies deltas to an index and the saturation state built
// over it.
type Maintainer struct {
	idx    *index.Index
	state  *saturation.State
	policy properties.ChainPolicy
}

// New creates a maintainer. The state must have been built over idx.
func New(idx *index.Index, state *saturation.State, policy properties.ChainPolicy) *Maintainer {
	return &Maintainer{idx: idx, state: state, policy: policy}
}

// Apply indexes the delta and brings the saturation up to date. Axioms
// that fail to (de)index are reported in the joined error; the others are
// still applied. A saturation error or interruption is reported in the
// result and the error.
func (m *Maintainer) Apply(ctx context.Context, delta Delta) (Report, error) {
	rep := Report{Stages: make(map[string]time.Duration)}
	stage := func(name string, start time.Time) {
		d := time.Since(start)
		rep.Stages[name] = d
		logging.IncrementalDebug("stage %s took %v", name, d)
	}

	start := time.Now()
	var errs []error
	for _, ax := range delta.Remove {
		if err := m.idx.Deindex(ax); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", ax, err))
			continue
		}
		rep.Removed++
	}
	for _, ax := range delta.Add {
		if _, err := m.idx.Index(ax); err != nil {
			errs = append(errs, fmt.Errorf("add %s: %w", ax, err))
			continue
		}
		rep.Added++
	}
	indexErr := errors.Join(errs...)
	changes := m.idx.TakeChanges()

	changed := make(map[index.RelationID]struct{})
	if changes.PropertiesChanged {
		prev := m.state.Properties()
		next, err := properties.Compute(ctx, m.idx.ToldFacts(), m.policy)
		if err != nil {
			return rep, errors.Join(indexErr, fmt.Errorf("property saturation: %w", err))
		}
		for r := range properties.Diff(prev, next) {
			changed[r] = struct{}{}
			for _, snap := range []*properties.Saturation{prev, next} {
				if rec := snap.Record(r); rec != nil {
					for _, super := range rec.SuperRelations {
						changed[super] = struct{}{}
					}
				}
			}
		}
		m.state.SetProperties(next)
	}
	rep.ChangedRelations = len(changed)
	stage(StageChangesInit, start)

	start = time.Now()
	cleared := m.state.Seeds(changes, changed)
	rep.Seeds = len(cleared)
	m.state.Dependents(cleared)
	rep.Cleared = len(cleared)
	rep.ClearedRoots = cleared
	stage(StageDesaturation, start)

	start = time.Now()
	rep.Dropped = m.state.Clear(cleared)
	stage(StageContextClean, start)

	start = time.Now()
	rep.Refired = m.state.Refire(cleared)
	for _, id := range m.idx.Classes() {
		m.state.Init(id)
	}
	for _, id := range m.idx.Individuals() {
		m.state.Init(id)
	}
	stage(StageContextInit, start)

	start = time.Now()
	res, err := m.state.Run(ctx)
	rep.Result = res
	stage(StageSaturation, start)

	logging.Incremental("applied +%d -%d axioms: %d seeds, %d cleared, %d dropped, %d re-fired, %d relations changed; %s",
		rep.Added, rep.Removed, rep.Seeds, rep.Cleared, rep.Dropped, rep.Refired, rep.ChangedRelations, res.Status)
	if err != nil {
		return rep, errors.Join(indexErr, err)
	}
	return rep, indexErr
}
