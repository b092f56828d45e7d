// Package proof renders the recorded provenance of saturation conclusions as
// derivation trees.
package proof

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"saturn/internal/logging"
	"saturn/internal/mangle"
	"saturn/internal/saturation"
)

// ErrNotDerived reports a conclusion that the state does not hold.
var ErrNotDerived = errors.New("conclusion not derived")

// DefaultMaxDepth bounds traces when the caller passes a non-positive depth.
const DefaultMaxDepth = 32

// DerivationSource classifies a node of the tree.
type DerivationSource string

const (
	SourceAxiom     DerivationSource = "axiom"     // produced from a told axiom
	SourceInit      DerivationSource = "init"      // context initialization
	SourceDerived   DerivationSource = "derived"   // produced from premises
	SourceTruncated DerivationSource = "truncated" // depth limit reached
	SourceCycle     DerivationSource = "cycle"     // already on the path
)

// DerivationNode is one conclusion in a derivation tree.
type DerivationNode struct {
	ID         int
	ParentID   int // -1 for the root
	Conclusion saturation.Conclusion
	Text       string
	Rule       saturation.RuleID
	Axiom      string // told axiom text, empty unless Source is SourceAxiom
	Source     DerivationSource
	Children   []*DerivationNode
	Depth      int
}

// DerivationTrace is a complete derivation tree for one conclusion.
type DerivationTrace struct {
	Root      *DerivationNode
	AllNodes  []*DerivationNode
	Duration  time.Duration
	Timestamp time.Time
}

type tracer struct {
	state    *saturation.State
	maxDepth int
	nodes    []*DerivationNode
	onPath   map[saturation.Conclusion]bool
}

// Trace follows the first recorded inference of c back to told axioms and
// context initializations. Subtrees deeper than maxDepth are cut off.
func Trace(state *saturation.State, c saturation.Conclusion, maxDepth int) (*DerivationTrace, error) {
	start := time.Now()
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if _, ok := state.Inference(c); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDerived, c.Format(state.Index()))
	}

	t := &tracer{
		state:    state,
		maxDepth: maxDepth,
		onPath:   make(map[saturation.Conclusion]bool),
	}
	root := t.build(c, -1, 0)

	trace := &DerivationTrace{
		Root:      root,
		AllNodes:  t.nodes,
		Duration:  time.Since(start),
		Timestamp: start,
	}
	logging.SaturationDebug("traced %s: %d nodes in %v", root.Text, len(t.nodes), trace.Duration)
	return trace, nil
}

func (t *tracer) build(c saturation.Conclusion, parent, depth int) *DerivationNode {
	node := &DerivationNode{
		ID:         len(t.nodes),
		ParentID:   parent,
		Conclusion: c,
		Text:       c.Format(t.state.Index()),
		Depth:      depth,
	}
	t.nodes = append(t.nodes, node)

	inf, _ := t.state.Inference(c)
	node.Rule = inf.Rule

	switch {
	case t.onPath[c]:
		node.Source = SourceCycle
		return node
	case inf.Rule == saturation.RuleInit:
		node.Source = SourceInit
		return node
	case len(inf.Premises) > 0 && depth >= t.maxDepth:
		node.Source = SourceTruncated
		return node
	default:
		node.Source = SourceDerived
	}
	if ax, ok := t.state.Index().Axiom(inf.Axiom); ok {
		node.Source = SourceAxiom
		node.Axiom = ax.String()
	}

	t.onPath[c] = true
	for _, p := range inf.Premises {
		node.Children = append(node.Children, t.build(p, node.ID, depth+1))
	}
	delete(t.onPath, c)
	return node
}

// Axioms returns the distinct told axioms the trace rests on, in the order
// they are first met.
func (trace *DerivationTrace) Axioms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range trace.AllNodes {
		if n.Axiom != "" && !seen[n.Axiom] {
			seen[n.Axiom] = true
			out = append(out, n.Axiom)
		}
	}
	return out
}

// ============================================================================
// Materialization
// ============================================================================

// Schema declares the facts produced by Materialize. proof_support(X, Y)
// holds when conclusion node Y lies anywhere below node X; proof_uses(X, A)
// when told axiom A is used at X or below it.
const Schema = `
Decl proof_node(ID, Parent, Conclusion, Rule).
Decl proof_axiom(ID, Axiom).
Decl proof_support(ID, Below).
Decl proof_uses(ID, Axiom).

proof_support(X, Y) :- proof_node(Y, X, _, _).
proof_support(X, Z) :- proof_node(Y, X, _, _), proof_support(Y, Z).

proof_uses(X, A) :- proof_axiom(X, A).
proof_uses(X, A) :- proof_support(X, Y), proof_axiom(Y, A).
`

// Materialize stores the trace as proof_node and proof_axiom facts in a Mangle
// engine that has loaded Schema, then evaluates it.
func Materialize(ctx context.Context, engine *mangle.Engine, trace *DerivationTrace) error {
	facts := make([]mangle.Fact, 0, len(trace.AllNodes))
	for _, n := range trace.AllNodes {
		facts = append(facts, mangle.Fact{
			Predicate: "proof_node",
			Args:      []interface{}{n.ID, n.ParentID, n.Text, n.Rule.String()},
		})
		if n.Axiom != "" {
			facts = append(facts, mangle.Fact{
				Predicate: "proof_axiom",
				Args:      []interface{}{n.ID, n.Axiom},
			})
		}
	}
	if err := engine.AddFacts(facts); err != nil {
		return fmt.Errorf("failed to materialize trace: %w", err)
	}
	return engine.Evaluate(ctx)
}

// AxiomSupport returns, per node id, the sorted told axioms its derivation
// uses. Nodes resting on no axiom are absent.
func AxiomSupport(ctx context.Context, trace *DerivationTrace) (map[int][]string, error) {
	engine := mangle.NewEngine(mangle.DefaultConfig())
	if err := engine.LoadSchemaString(Schema); err != nil {
		return nil, err
	}
	if err := Materialize(ctx, engine, trace); err != nil {
		return nil, err
	}
	facts, err := engine.GetFacts("proof_uses")
	if err != nil {
		return nil, err
	}

	support := make(map[int][]string)
	for _, f := range facts {
		id, ok := f.Args[0].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected proof_uses id %v", f.Args[0])
		}
		support[int(id)] = append(support[int(id)], fmt.Sprint(f.Args[1]))
	}
	return support, nil
}

// ============================================================================
// Rendering
// ============================================================================

// ToASCII renders the trace as an indented tree.
func (trace *DerivationTrace) ToASCII() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Conclusion: %s\n", trace.Root.Text))
	sb.WriteString(fmt.Sprintf("Nodes: %d\n", len(trace.AllNodes)))
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	renderNodeASCII(&sb, trace.Root, "", true)

	return sb.String()
}

func renderNodeASCII(sb *strings.Builder, node *DerivationNode, prefix string, isLast bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}

	var tag string
	switch node.Source {
	case SourceAxiom:
		tag = fmt.Sprintf("[%s: %s]", node.Rule, node.Axiom)
	case SourceTruncated, SourceCycle:
		tag = fmt.Sprintf("[%s …]", node.Source)
	default:
		tag = fmt.Sprintf("[%s]", node.Rule)
	}
	sb.WriteString(fmt.Sprintf("%s%s%s %s\n", prefix, connector, node.Text, tag))

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}
	for i, child := range node.Children {
		renderNodeASCII(sb, child, childPrefix, i == len(node.Children)-1)
	}
}
