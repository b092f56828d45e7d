package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saturn/internal/incremental"
	"saturn/internal/metrics"
	"saturn/internal/reasoner"
	"saturn/internal/store"
	"saturn/internal/taxonomy"
	"saturn/internal/watch"
)

var metricsAddr string

// watchCmd keeps a taxonomy up to date while the ontology file is edited
var watchCmd = &cobra.Command{
	Use:   "watch [ontology.yaml]",
	Short: "Reclassify incrementally whenever the ontology file changes",
	Long: `Classifies the ontology, then watches the file. Every saved version
is diffed against the previous one and applied as an incremental change;
only the affected part of the saturation is recomputed. Changes to the
taxonomy are printed after each update.

With --metrics-addr the reasoner metrics are served for Prometheus.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	out := cmd.OutOrStdout()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		stop := serveMetrics(reg)
		defer stop()
	}

	r, onto, err := loadReasoner(args[0], reasoner.WithMetrics(m))
	if err != nil {
		return err
	}
	tracker := &taxonomyTracker{r: r, out: out, label: onto.Name}
	if err := tracker.update(ctx); err != nil {
		return err
	}

	handler := func(ctx context.Context, delta incremental.Delta) error {
		res, err := r.Apply(ctx, delta)
		if err != nil {
			// rejected axioms are skipped, the valid part of the delta is applied
			logger.Warn("delta partially applied", zap.Error(err))
		}
		fmt.Fprintf(out, "\n+%d -%d axioms (%s, %d conclusions in %v)\n",
			len(delta.Add), len(delta.Remove), res.Status, res.Stats.Conclusions, res.Stats.Duration)
		return tracker.update(ctx)
	}

	w, err := watch.New(args[0], onto.Axioms, cfg.GetDebounce(), handler)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s (Ctrl-C to stop)\n", args[0])

	<-ctx.Done()
	w.Stop()
	stats := w.GetStats()
	logger.Info("watch stopped",
		zap.Int("reloads", stats.Reloads),
		zap.Int("deltas", stats.Deltas),
		zap.Int("parse_errors", stats.ParseErrors))
	return nil
}

// taxonomyTracker prints what changed between consecutive taxonomies.
type taxonomyTracker struct {
	r     *reasoner.Reasoner
	out   io.Writer
	label string
	prev  *store.Snapshot
}

func (t *taxonomyTracker) update(ctx context.Context) error {
	tax, err := t.r.Classify(ctx)
	switch {
	case errors.Is(err, taxonomy.ErrInconsistent):
		fmt.Fprintln(t.out, "ontology is inconsistent")
		t.prev = nil
		return nil
	case errors.Is(err, reasoner.ErrIncomplete):
		fmt.Fprintln(t.out, "classification incomplete")
		return nil
	case err != nil:
		return err
	}

	res := t.r.LastResult()
	run := store.Run{Label: t.label, Policy: cfg.Saturation.ChainPolicy, Status: res.Status.String(),
		Conclusions: res.Stats.Conclusions, Duration: res.Stats.Duration}
	next := store.SnapshotOf(run, tax)
	if t.prev == nil {
		printTaxonomy(t.out, tax)
	} else {
		printChange(t.out, store.Compare(t.prev, next))
	}
	t.prev = next

	if cfg.Store.DatabasePath != "" {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if _, err := s.Save(ctx, run, tax); err != nil {
			return err
		}
	}
	return nil
}

func printChange(w io.Writer, c store.Change) {
	if c.Empty() {
		fmt.Fprintln(w, "taxonomy unchanged")
		return
	}
	for _, e := range c.AddedEdges {
		fmt.Fprintf(w, "  + %s ⊑ %s\n", e.Sub, e.Super)
	}
	for _, e := range c.RemovedEdges {
		fmt.Fprintf(w, "  - %s ⊑ %s\n", e.Sub, e.Super)
	}
	if len(c.Regrouped) > 0 {
		fmt.Fprintf(w, "  equivalences changed: %s\n", strings.Join(c.Regrouped, ", "))
	}
	if len(c.Retyped) > 0 {
		fmt.Fprintf(w, "  types changed: %s\n", strings.Join(c.Retyped, ", "))
	}
}

func serveMetrics(reg *prometheus.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", metricsAddr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
