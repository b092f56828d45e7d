// Package ontology defines the normalized axiom and class-expression model
// consumed by the expression index, together with a YAML fixture format.
package ontology

import (
	"sort"
	"strings"
)

// Reserved class names.
const (
	ThingName   = "owl:Thing"
	NothingName = "owl:Nothing"
)

// ExprKind tags a class expression.
type ExprKind uint8

const (
	ExprClass ExprKind = iota
	ExprThing
	ExprNothing
	ExprNominal
	ExprAnd
	ExprOr
	ExprNot
	ExprSome
)

// ClassExpr is a class expression tree. Only the fields used by Kind are set.
type ClassExpr struct {
	Kind     ExprKind
	Name     string // class or individual name
	Property string // ExprSome
	Operands []ClassExpr
}

// Class returns a named class; the reserved names map to Thing and Nothing.
func Class(name string) ClassExpr {
	switch name {
	case ThingName:
		return Thing()
	case NothingName:
		return Nothing()
	}
	return ClassExpr{Kind: ExprClass, Name: name}
}

func Thing() ClassExpr   { return ClassExpr{Kind: ExprThing, Name: ThingName} }
func Nothing() ClassExpr { return ClassExpr{Kind: ExprNothing, Name: NothingName} }

// Nominal is the singleton class {a} of an individual.
func Nominal(individual string) ClassExpr {
	return ClassExpr{Kind: ExprNominal, Name: individual}
}

func And(operands ...ClassExpr) ClassExpr {
	return ClassExpr{Kind: ExprAnd, Operands: operands}
}

func Or(operands ...ClassExpr) ClassExpr {
	return ClassExpr{Kind: ExprOr, Operands: operands}
}

func Not(operand ClassExpr) ClassExpr {
	return ClassExpr{Kind: ExprNot, Operands: []ClassExpr{operand}}
}

// Some is the existential restriction ∃property.filler.
func Some(property string, filler ClassExpr) ClassExpr {
	return ClassExpr{Kind: ExprSome, Property: property, Operands: []ClassExpr{filler}}
}

// IsNamed reports whether the expression is a named class (including the
// reserved ones).
func (e ClassExpr) IsNamed() bool {
	return e.Kind == ExprClass || e.Kind == ExprThing || e.Kind == ExprNothing
}

// String renders the expression in functional-style syntax. Operands of
// intersections and unions are sorted so the rendering is canonical.
func (e ClassExpr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e ClassExpr) write(b *strings.Builder) {
	switch e.Kind {
	case ExprClass, ExprThing, ExprNothing:
		b.WriteString(e.Name)
	case ExprNominal:
		b.WriteString("ObjectOneOf(")
		b.WriteString(e.Name)
		b.WriteByte(')')
	case ExprAnd:
		writeNary(b, "ObjectIntersectionOf", e.Operands)
	case ExprOr:
		writeNary(b, "ObjectUnionOf", e.Operands)
	case ExprNot:
		b.WriteString("ObjectComplementOf(")
		if len(e.Operands) == 1 {
			e.Operands[0].write(b)
		}
		b.WriteByte(')')
	case ExprSome:
		b.WriteString("ObjectSomeValuesFrom(")
		b.WriteString(e.Property)
		b.WriteByte(' ')
		if len(e.Operands) == 1 {
			e.Operands[0].write(b)
		}
		b.WriteByte(')')
	default:
		b.WriteString("?")
	}
}

func writeNary(b *strings.Builder, head string, operands []ClassExpr) {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	sort.Strings(parts)
	b.WriteString(head)
	b.WriteByte('(')
	b.WriteString(strings.Join(parts, " "))
	b.WriteByte(')')
}

// Validate checks the shape of the expression tree.
func (e ClassExpr) Validate() error {
	switch e.Kind {
	case ExprClass, ExprNominal:
		if e.Name == "" {
			return malformed("%s without a name", e.kindName())
		}
	case ExprThing, ExprNothing:
	case ExprAnd, ExprOr:
		for _, op := range e.Operands {
			if err := op.Validate(); err != nil {
				return err
			}
		}
	case ExprNot:
		if len(e.Operands) != 1 {
			return malformed("complement needs exactly one operand, got %d", len(e.Operands))
		}
		return e.Operands[0].Validate()
	case ExprSome:
		if e.Property == "" {
			return malformed("existential restriction without a property")
		}
		if len(e.Operands) != 1 {
			return malformed("existential restriction needs exactly one filler, got %d", len(e.Operands))
		}
		return e.Operands[0].Validate()
	default:
		return malformed("unknown expression kind %d", e.Kind)
	}
	return nil
}

func (e ClassExpr) kindName() string {
	switch e.Kind {
	case ExprNominal:
		return "individual"
	default:
		return "class"
	}
}
