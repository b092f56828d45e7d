package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"saturn/internal/proof"
)

var (
	explainDepth   int
	explainSupport bool
)

// explainCmd prints the derivation of a subsumption
var explainCmd = &cobra.Command{
	Use:   "explain [ontology.yaml] [sub] [super]",
	Short: "Show how a subsumption between two classes or individuals is derived",
	Long: `Saturates the ontology and prints the recorded derivation of
sub ⊑ super as a tree. Leaves are context initializations; nodes derived
from a told axiom name that axiom. With --support every step is
followed by the told axioms its derivation rests on.

Example:
  saturn explain pizza.yaml Margherita VegetarianPizza`,
	Args: cobra.ExactArgs(3),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().IntVar(&explainDepth, "depth", 0, "Maximum tree depth (0 = default limit)")
	explainCmd.Flags().BoolVar(&explainSupport, "support", false, "List the told axioms each step rests on")
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, _, err := loadReasoner(args[0])
	if err != nil {
		return err
	}
	if _, err := r.Saturate(ctx); err != nil {
		return err
	}

	sub, err := r.Resolve(args[1])
	if err != nil {
		return err
	}
	super, err := r.Resolve(args[2])
	if err != nil {
		return err
	}

	trace, err := r.Explain(ctx, sub, super, explainDepth)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, trace.ToASCII())
	if !explainSupport {
		return nil
	}

	support, err := proof.AxiomSupport(ctx, trace)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nsupport:")
	for _, n := range trace.AllNodes {
		if axioms, ok := support[n.ID]; ok {
			fmt.Fprintf(out, "  %s\n", n.Text)
			for _, ax := range axioms {
				fmt.Fprintf(out, "      %s\n", ax)
			}
		}
	}
	return nil
}
