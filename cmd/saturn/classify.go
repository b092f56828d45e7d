package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saturn/internal/ontology"
	"saturn/internal/saturation"
	"saturn/internal/store"
	"saturn/internal/taxonomy"
)

var (
	saveSnapshot bool
	showStats    bool
)

// classifyCmd computes and prints the taxonomy
var classifyCmd = &cobra.Command{
	Use:   "classify [ontology.yaml]",
	Short: "Saturate an ontology and print its class taxonomy",
	Long: `Loads the ontology, saturates it and prints the reduced taxonomy:
one line per equivalence class, indented under its direct super classes,
followed by the direct types of every individual.

With --save (or store.database_path set) the taxonomy is stored as a
snapshot that 'saturn snapshots' can list and compare.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&saveSnapshot, "save", false, "Store the taxonomy as a snapshot")
	classifyCmd.Flags().BoolVar(&showStats, "stats", false, "Print saturation statistics")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, onto, err := loadReasoner(args[0])
	if err != nil {
		return err
	}
	res, err := r.Saturate(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if showStats {
		printStats(out, res)
	}

	tax, err := r.Classify(ctx)
	if err != nil {
		return err
	}
	printTaxonomy(out, tax)

	if saveSnapshot || cfg.Store.DatabasePath != "" {
		run, err := saveTaxonomy(ctx, onto, res, tax)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nsnapshot %s saved\n", run.ID)
	}
	return nil
}

func printStats(w io.Writer, res saturation.Result) {
	fmt.Fprintf(w, "status:      %s\n", res.Status)
	fmt.Fprintf(w, "run:         %s (%d workers, %v)\n", res.Stats.RunID, res.Stats.Workers, res.Stats.Duration)
	fmt.Fprintf(w, "conclusions: %d (%d duplicates)\n", res.Stats.Conclusions, res.Stats.Duplicates)
	for _, k := range saturation.Kinds() {
		if n := res.Stats.ByKind[k]; n > 0 {
			fmt.Fprintf(w, "  %-22s %d\n", k, n)
		}
	}
	fmt.Fprintln(w)
}

// printTaxonomy writes the class tree depth first from owl:Thing. A node
// with several direct supers is printed under each of them.
func printTaxonomy(w io.Writer, tax *taxonomy.Taxonomy) {
	var walk func(n *taxonomy.Node, depth int)
	walk = func(n *taxonomy.Node, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), strings.Join(n.Members(), " ≡ "))
		for _, sub := range n.DirectSubs() {
			if sub == tax.Bottom() {
				continue
			}
			walk(sub, depth+1)
		}
	}
	walk(tax.Top(), 0)

	if members := tax.Bottom().Members(); len(members) > 1 {
		fmt.Fprintf(w, "unsatisfiable: %s\n", strings.Join(members[1:], ", "))
	}

	if instances := tax.Instances(); len(instances) > 0 {
		fmt.Fprintln(w, "\nindividuals:")
		for _, inst := range instances {
			var types []string
			for _, t := range inst.DirectTypes() {
				types = append(types, t.Canonical())
			}
			fmt.Fprintf(w, "  %s: %s\n", strings.Join(inst.Members(), " = "), strings.Join(types, ", "))
		}
	}
}

func openStore() (*store.SnapshotStore, error) {
	path := cfg.Store.DatabasePath
	if path == "" {
		path = "saturn.db"
	}
	return store.Open(path)
}

func saveTaxonomy(ctx context.Context, onto *ontology.Ontology, res saturation.Result, tax *taxonomy.Taxonomy) (store.Run, error) {
	s, err := openStore()
	if err != nil {
		return store.Run{}, err
	}
	defer s.Close()

	run, err := s.Save(ctx, store.Run{
		ID:          res.Stats.RunID,
		Label:       onto.Name,
		Policy:      cfg.Saturation.ChainPolicy,
		Status:      res.Status.String(),
		Conclusions: res.Stats.Conclusions,
		Duration:    res.Stats.Duration,
	}, tax)
	if err != nil {
		return store.Run{}, err
	}
	logger.Info("snapshot saved", zap.String("run", run.ID), zap.Int("classes", run.Classes))
	return run, nil
}
