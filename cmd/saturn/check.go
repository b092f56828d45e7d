package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"saturn/internal/reasoner"
	"saturn/internal/saturation"
)

// errInconsistent makes `saturn check` exit non-zero.
var errInconsistent = errors.New("ontology is inconsistent")

// checkCmd reports consistency and unsatisfiable classes
var checkCmd = &cobra.Command{
	Use:   "check [ontology.yaml]",
	Short: "Check an ontology for consistency and unsatisfiable classes",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, _, err := loadReasoner(args[0])
	if err != nil {
		return err
	}
	res, err := r.Saturate(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch res.Status {
	case saturation.StatusInterrupted:
		fmt.Fprintln(out, "incomplete: saturation was interrupted")
		return reasoner.ErrIncomplete
	case saturation.StatusInconsistent:
		fmt.Fprintln(out, "inconsistent")
		return errInconsistent
	}

	tax, err := r.Classify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "consistent")
	if members := tax.Bottom().Members(); len(members) > 1 {
		fmt.Fprintf(out, "unsatisfiable classes: %s\n", strings.Join(members[1:], ", "))
	}
	return nil
}
