// Package reasoner is the entry point for loading axioms, saturating,
// applying changes and querying the results.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"saturn/internal/config"
	"saturn/internal/incremental"
	"saturn/internal/index"
	"saturn/internal/logging"
	"saturn/internal/metrics"
	"saturn/internal/ontology"
	"saturn/internal/proof"
	"saturn/internal/properties"
	"saturn/internal/saturation"
	"saturn/internal/taxonomy"
)

var (
	// ErrUnknownExpression is returned for a query over an expression that
	// no axiom mentions.
	ErrUnknownExpression = errors.New("unknown expression")
	// ErrIncomplete is returned for a query while the last saturation was
	// interrupted or no saturation has run since the axioms changed.
	ErrIncomplete = errors.New("saturation incomplete")
)

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithMetrics records runs, maintenance passes and taxonomies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reasoner) { r.metrics = m }
}

// WithProgress registers a progress callback, invoked every
// saturation.progress_interval during a run.
func WithProgress(fn func(saturation.Progress)) Option {
	return func(r *Reasoner) { r.opts.Progress = fn }
}

// WithInterruptCheck registers a predicate polled between conclusions;
// returning true interrupts the run.
func WithInterruptCheck(fn func() bool) Option {
	return func(r *Reasoner) { r.opts.InterruptCheck = fn }
}

// WithWorkers overrides saturation.workers.
func WithWorkers(n int) Option {
	return func(r *Reasoner) { r.opts.Workers = n }
}

// Reasoner owns one ontology and its saturation. Mutations and runs are
// serialized; queries may run concurrently with each other.
type Reasoner struct {
	mu sync.RWMutex

	cfg     *config.Config
	policy  properties.ChainPolicy
	idx     *index.Index
	state   *saturation.State
	maint   *incremental.Maintainer
	metrics *metrics.Metrics
	opts    saturation.Options

	started bool // first saturation has initialized the state
	dirty   bool // axioms changed since the last run
	last    saturation.Result
	tax     *taxonomy.Taxonomy
}

// New creates an empty reasoner. A nil cfg means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) (*Reasoner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	policy, err := properties.ParseChainPolicy(cfg.Saturation.ChainPolicy)
	if err != nil {
		return nil, err
	}

	r := &Reasoner{
		cfg:    cfg,
		policy: policy,
		idx:    index.New(),
		opts: saturation.Options{
			Workers:          cfg.GetWorkers(),
			ProgressInterval: cfg.GetProgressInterval(),
		},
	}
	r.opts.Progress = func(p saturation.Progress) {
		logging.Saturation("run %s: %d conclusions, %d contexts pending after %v", p.RunID, p.Processed, p.Pending, p.Elapsed)
	}
	for _, opt := range opts {
		opt(r)
	}

	r.state = saturation.NewState(r.idx, properties.Empty(policy), r.opts)
	r.maint = incremental.New(r.idx, r.state, policy)
	return r, nil
}

// Load indexes axioms. Axioms that fail are reported in the joined error
// and skipped; the others stay loaded. The next Saturate picks them up.
func (r *Reasoner) Load(axioms []ontology.Axiom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	loaded := 0
	for _, ax := range axioms {
		if _, err := r.idx.Index(ax); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ax, err))
			continue
		}
		loaded++
	}
	if loaded > 0 {
		r.dirty = true
		r.tax = nil
	}
	logging.Index("loaded %d of %d axioms", loaded, len(axioms))
	return errors.Join(errs...)
}

// Axioms returns the loaded axioms in load order.
func (r *Reasoner) Axioms() []ontology.Axiom {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.Axioms()
}

// Saturate brings the saturation up to date with the loaded axioms. The
// first call saturates from scratch, later calls maintain incrementally.
// An interrupted run is reported through the result status; calling
// Saturate again resumes it.
func (r *Reasoner) Saturate(ctx context.Context) (saturation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saturateLocked(ctx)
}

func (r *Reasoner) saturateLocked(ctx context.Context) (saturation.Result, error) {
	if timeout := r.cfg.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if r.started {
		rep, err := r.maint.Apply(ctx, incremental.Delta{})
		return r.finish(rep.Result, err, &rep)
	}

	props, err := properties.Compute(ctx, r.idx.ToldFacts(), r.policy)
	if err != nil {
		return saturation.Result{}, fmt.Errorf("property saturation: %w", err)
	}
	r.idx.TakeChanges()
	r.state.SetProperties(props)
	for _, id := range r.idx.Classes() {
		r.state.Init(id)
	}
	for _, id := range r.idx.Individuals() {
		r.state.Init(id)
	}
	r.started = true

	res, err := r.state.Run(ctx)
	return r.finish(res, err, nil)
}

func (r *Reasoner) finish(res saturation.Result, err error, rep *incremental.Report) (saturation.Result, error) {
	r.last = res
	r.tax = nil
	r.dirty = err != nil || res.Status == saturation.StatusInterrupted
	if rep != nil {
		r.metrics.ObserveMaintenance(*rep)
	} else {
		r.metrics.ObserveRun(res)
	}
	return res, err
}

// Apply adds and removes axioms and re-saturates incrementally. Axioms that
// fail to (de)index are reported in the joined error; the rest is applied.
func (r *Reasoner) Apply(ctx context.Context, delta incremental.Delta) (saturation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		var errs []error
		for _, ax := range delta.Remove {
			if err := r.idx.Deindex(ax); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", ax, err))
			}
		}
		for _, ax := range delta.Add {
			if _, err := r.idx.Index(ax); err != nil {
				errs = append(errs, fmt.Errorf("add %s: %w", ax, err))
			}
		}
		res, err := r.saturateLocked(ctx)
		return res, errors.Join(append(errs, err)...)
	}

	if timeout := r.cfg.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	rep, err := r.maint.Apply(ctx, delta)
	return r.finish(rep.Result, err, &rep)
}

// Interrupt stops the run in flight. It is safe to call from any goroutine.
func (r *Reasoner) Interrupt() {
	r.state.Interrupt()
}

// LastResult returns the result of the most recent run.
func (r *Reasoner) LastResult() saturation.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Reasoner) readyLocked() error {
	if !r.started || r.dirty {
		return ErrIncomplete
	}
	return nil
}

// Resolve returns the indexed expression named name: a class if one is
// known, otherwise the nominal of an individual.
func (r *Reasoner) Resolve(name string) (ontology.ClassExpr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range []ontology.ClassExpr{ontology.Class(name), ontology.Nominal(name)} {
		if _, ok := r.idx.Lookup(e); ok {
			return e, nil
		}
	}
	return ontology.ClassExpr{}, fmt.Errorf("%w: %s", ErrUnknownExpression, name)
}

func (r *Reasoner) lookupLocked(e ontology.ClassExpr) (index.NodeID, error) {
	id, ok := r.idx.Lookup(e)
	if !ok {
		return index.NoNode, fmt.Errorf("%w: %s", ErrUnknownExpression, e)
	}
	return id, nil
}

// consistentLocked fails with taxonomy.ErrInconsistent when the ontology
// has no model; every subsumption is entailed then.
func (r *Reasoner) consistentLocked() error {
	if r.state.Inconsistent() {
		return taxonomy.ErrInconsistent
	}
	return nil
}

// contextFor returns the saturated context root of e, saturating a fresh
// context when e is not a classification root.
func (r *Reasoner) contextFor(ctx context.Context, e ontology.ClassExpr) (index.NodeID, error) {
	r.mu.RLock()
	id, err := r.lookupLocked(e)
	if err == nil {
		err = r.readyLocked()
	}
	if err == nil {
		err = r.consistentLocked()
	}
	if err == nil {
		if c := r.state.Context(id); c != nil && c.Saturated() {
			r.mu.RUnlock()
			return id, nil
		}
	}
	r.mu.RUnlock()
	if err != nil {
		return index.NoNode, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.readyLocked(); err != nil {
		return index.NoNode, err
	}
	r.state.Init(id)
	res, err := r.state.Run(ctx)
	r.metrics.ObserveRun(res)
	if err != nil {
		return index.NoNode, err
	}
	if res.Status == saturation.StatusInterrupted {
		return index.NoNode, ErrIncomplete
	}
	if err := r.consistentLocked(); err != nil {
		return index.NoNode, err
	}
	return id, nil
}

// IsSubsumedBy reports whether sub ⊑ super is entailed. Like every query
// on expressions it fails with taxonomy.ErrInconsistent for an ontology
// without a model.
func (r *Reasoner) IsSubsumedBy(ctx context.Context, sub, super ontology.ClassExpr) (bool, error) {
	subID, err := r.contextFor(ctx, sub)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	superID, err := r.lookupLocked(super)
	if err != nil {
		return false, err
	}
	return r.state.IsSubsumedBy(subID, superID), nil
}

// Subsumers returns the names of the named classes subsuming e, sorted.
// An unsatisfiable e is subsumed by owl:Nothing and every class.
func (r *Reasoner) Subsumers(ctx context.Context, e ontology.ClassExpr) ([]string, error) {
	id, err := r.contextFor(ctx, e)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.state.Subsumers(id)
	if r.state.Unsatisfiable(id) {
		ids = r.idx.Classes()
	}
	var names []string
	for _, d := range ids {
		if n := r.idx.Node(d); n.Kind == index.KindClass {
			names = append(names, n.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Inconsistent reports whether the loaded ontology has no model.
func (r *Reasoner) Inconsistent() (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.readyLocked(); err != nil {
		return false, err
	}
	return r.state.Inconsistent(), nil
}

// Classify saturates if needed and returns the taxonomy. It fails with
// taxonomy.ErrInconsistent for an inconsistent ontology and ErrIncomplete
// when the run was interrupted.
func (r *Reasoner) Classify(ctx context.Context) (*taxonomy.Taxonomy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.dirty {
		res, err := r.saturateLocked(ctx)
		if err != nil {
			return nil, err
		}
		if res.Status == saturation.StatusInterrupted {
			return nil, ErrIncomplete
		}
	}
	if r.tax != nil {
		return r.tax, nil
	}

	tax, err := taxonomy.Build(ctx, source{idx: r.idx, state: r.state}, r.opts.Workers)
	if err != nil {
		return nil, err
	}
	r.tax = tax
	r.metrics.ObserveTaxonomy(tax)
	return tax, nil
}

// Explain returns the derivation of sub ⊑ super, cut off below depth
// (non-positive means proof.DefaultMaxDepth). For an unsatisfiable sub the
// derivation of sub ⊑ owl:Nothing is returned.
func (r *Reasoner) Explain(ctx context.Context, sub, super ontology.ClassExpr, depth int) (*proof.DerivationTrace, error) {
	subID, err := r.contextFor(ctx, sub)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	superID, err := r.lookupLocked(super)
	if err != nil {
		return nil, err
	}

	targets := []index.NodeID{superID}
	if r.state.Unsatisfiable(subID) {
		targets = append(targets, index.Nothing)
	}
	conclusions := r.state.Conclusions(subID)
	for _, target := range targets {
		for _, c := range conclusions {
			if c.IsSubsumer() && c.Expr == target {
				return proof.Trace(r.state, c, depth)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s ⊑ %s", proof.ErrNotDerived, sub, super)
}

// source adapts the saturation state to the taxonomy builder.
type source struct {
	idx   *index.Index
	state *saturation.State
}

func (s source) Classes() []index.NodeID                  { return s.idx.Classes() }
func (s source) Individuals() []index.NodeID              { return s.idx.Individuals() }
func (s source) Subsumers(id index.NodeID) []index.NodeID { return s.state.Subsumers(id) }
func (s source) Unsatisfiable(id index.NodeID) bool       { return s.state.Unsatisfiable(id) }
func (s source) Inconsistent() bool                       { return s.state.Inconsistent() }
func (s source) Name(id index.NodeID) string              { return s.idx.Node(id).Name }
