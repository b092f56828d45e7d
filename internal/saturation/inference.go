package saturation

import (
	"fmt"

	"saturn/internal/index"
)

// RuleID names the inference rule that produced a conclusion.
type RuleID uint8

const (
	RuleInit RuleID = iota
	RuleToldSuper
	RuleConjunctionDecomposition
	RuleConjunctionComposition
	RuleExistentialDecomposition
	RulePropagationGeneration
	RuleReflexiveSelf
	RulePropagation
	RuleLinkComposition
	RuleComplementDecomposition
	RuleContradiction
	RuleUnionComposition
	RuleBottom
	RuleClash
	RuleClashPropagation
)

var ruleNames = []string{
	RuleInit:                     "init",
	RuleToldSuper:                "told_super",
	RuleConjunctionDecomposition: "conjunction_decomposition",
	RuleConjunctionComposition:   "conjunction_composition",
	RuleExistentialDecomposition: "existential_decomposition",
	RulePropagationGeneration:    "propagation_generation",
	RuleReflexiveSelf:            "reflexive_self",
	RulePropagation:              "propagation",
	RuleLinkComposition:          "link_composition",
	RuleComplementDecomposition:  "complement_decomposition",
	RuleContradiction:            "contradiction",
	RuleUnionComposition:         "union_composition",
	RuleBottom:                   "bottom",
	RuleClash:                    "clash",
	RuleClashPropagation:         "clash_propagation",
}

func (r RuleID) String() string {
	if int(r) < len(ruleNames) {
		return ruleNames[r]
	}
	return fmt.Sprintf("Rule(%d)", uint8(r))
}

// Inference is the first recorded derivation of a conclusion.
type Inference struct {
	Rule     RuleID
	Premises []Conclusion
	Axiom    index.AxiomID // told axiom for RuleToldSuper, NoAxiom otherwise
}

func infer(rule RuleID, premises ...Conclusion) Inference {
	return Inference{Rule: rule, Premises: premises, Axiom: index.NoAxiom}
}
