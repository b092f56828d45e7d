package ontology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed reports an axiom or expression with an invalid shape.
var ErrMalformed = errors.New("malformed axiom")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// AxiomKind tags an axiom.
type AxiomKind uint8

const (
	AxiomSubClassOf AxiomKind = iota
	AxiomEquivalentClasses
	AxiomDisjointClasses
	AxiomSubPropertyOf
	AxiomEquivalentProperties
	AxiomReflexiveProperty
	AxiomTransitiveProperty
	AxiomClassAssertion
	AxiomPropertyAssertion
	AxiomDeclareClass
	AxiomDeclareIndividual
	AxiomDeclareProperty
)

var axiomHeads = map[AxiomKind]string{
	AxiomSubClassOf:           "SubClassOf",
	AxiomEquivalentClasses:    "EquivalentClasses",
	AxiomDisjointClasses:      "DisjointClasses",
	AxiomSubPropertyOf:        "SubObjectPropertyOf",
	AxiomEquivalentProperties: "EquivalentObjectProperties",
	AxiomReflexiveProperty:    "ReflexiveObjectProperty",
	AxiomTransitiveProperty:   "TransitiveObjectProperty",
	AxiomClassAssertion:       "ClassAssertion",
	AxiomPropertyAssertion:    "ObjectPropertyAssertion",
	AxiomDeclareClass:         "Class",
	AxiomDeclareIndividual:    "NamedIndividual",
	AxiomDeclareProperty:      "ObjectProperty",
}

// Axiom is one normalized axiom.
//
//	SubClassOf:            Classes = [sub, super]
//	EquivalentClasses:     Classes = members
//	DisjointClasses:       Classes = members
//	SubPropertyOf:         Properties = sub chain (one element for a plain property), Super
//	EquivalentProperties:  Properties = members
//	Reflexive/Transitive:  Properties = [p]
//	ClassAssertion:        Classes = [class], Individuals = [a]
//	PropertyAssertion:     Properties = [p], Individuals = [subject, object]
//	Declare*:              the single declared entity
type Axiom struct {
	Kind        AxiomKind
	Classes     []ClassExpr
	Properties  []string
	Super       string
	Individuals []string
}

func SubClassOf(sub, super ClassExpr) Axiom {
	return Axiom{Kind: AxiomSubClassOf, Classes: []ClassExpr{sub, super}}
}

func EquivalentClasses(members ...ClassExpr) Axiom {
	return Axiom{Kind: AxiomEquivalentClasses, Classes: members}
}

func DisjointClasses(members ...ClassExpr) Axiom {
	return Axiom{Kind: AxiomDisjointClasses, Classes: members}
}

func SubPropertyOf(sub, super string) Axiom {
	return Axiom{Kind: AxiomSubPropertyOf, Properties: []string{sub}, Super: super}
}

// SubPropertyChainOf is SubObjectPropertyOf(ObjectPropertyChain(chain...) super).
func SubPropertyChainOf(chain []string, super string) Axiom {
	return Axiom{Kind: AxiomSubPropertyOf, Properties: append([]string(nil), chain...), Super: super}
}

func EquivalentProperties(members ...string) Axiom {
	return Axiom{Kind: AxiomEquivalentProperties, Properties: members}
}

func ReflexiveProperty(p string) Axiom {
	return Axiom{Kind: AxiomReflexiveProperty, Properties: []string{p}}
}

func TransitiveProperty(p string) Axiom {
	return Axiom{Kind: AxiomTransitiveProperty, Properties: []string{p}}
}

func ClassAssertion(class ClassExpr, individual string) Axiom {
	return Axiom{Kind: AxiomClassAssertion, Classes: []ClassExpr{class}, Individuals: []string{individual}}
}

func PropertyAssertion(p, subject, object string) Axiom {
	return Axiom{Kind: AxiomPropertyAssertion, Properties: []string{p}, Individuals: []string{subject, object}}
}

func DeclareClass(name string) Axiom {
	return Axiom{Kind: AxiomDeclareClass, Classes: []ClassExpr{Class(name)}}
}

func DeclareIndividual(name string) Axiom {
	return Axiom{Kind: AxiomDeclareIndividual, Individuals: []string{name}}
}

func DeclareProperty(name string) Axiom {
	return Axiom{Kind: AxiomDeclareProperty, Properties: []string{name}}
}

// Validate checks arities and names.
func (a Axiom) Validate() error {
	for _, c := range a.Classes {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, p := range a.Properties {
		if p == "" {
			return malformed("empty property name in %s", a.head())
		}
	}
	for _, i := range a.Individuals {
		if i == "" {
			return malformed("empty individual name in %s", a.head())
		}
	}

	want := func(classes, props, inds int) error {
		if (classes >= 0 && len(a.Classes) != classes) ||
			(props >= 0 && len(a.Properties) != props) ||
			(inds >= 0 && len(a.Individuals) != inds) {
			return malformed("%s has the wrong number of arguments", a.head())
		}
		return nil
	}

	switch a.Kind {
	case AxiomSubClassOf:
		return want(2, 0, 0)
	case AxiomEquivalentClasses, AxiomDisjointClasses:
		if len(a.Classes) < 2 {
			return malformed("%s needs at least two classes", a.head())
		}
		return want(-1, 0, 0)
	case AxiomSubPropertyOf:
		if len(a.Properties) == 0 || a.Super == "" {
			return malformed("%s needs a sub property (chain) and a super property", a.head())
		}
		return want(0, -1, 0)
	case AxiomEquivalentProperties:
		if len(a.Properties) < 2 {
			return malformed("%s needs at least two properties", a.head())
		}
		return want(0, -1, 0)
	case AxiomReflexiveProperty, AxiomTransitiveProperty, AxiomDeclareProperty:
		return want(0, 1, 0)
	case AxiomClassAssertion:
		return want(1, 0, 1)
	case AxiomPropertyAssertion:
		return want(0, 1, 2)
	case AxiomDeclareClass:
		if err := want(1, 0, 0); err != nil {
			return err
		}
		if !a.Classes[0].IsNamed() {
			return malformed("only named classes can be declared")
		}
		return nil
	case AxiomDeclareIndividual:
		return want(0, 0, 1)
	}
	return malformed("unknown axiom kind %d", a.Kind)
}

func (a Axiom) head() string {
	if h, ok := axiomHeads[a.Kind]; ok {
		return h
	}
	return fmt.Sprintf("Axiom(%d)", a.Kind)
}

// Key is a canonical rendering used for de-duplication: two axioms with the
// same key have the same meaning.
func (a Axiom) Key() string {
	return a.String()
}

func (a Axiom) String() string {
	var args []string
	switch a.Kind {
	case AxiomSubClassOf:
		for _, c := range a.Classes {
			args = append(args, c.String())
		}
	case AxiomEquivalentClasses, AxiomDisjointClasses:
		for _, c := range a.Classes {
			args = append(args, c.String())
		}
		sort.Strings(args)
	case AxiomSubPropertyOf:
		if len(a.Properties) == 1 {
			args = append(args, a.Properties[0])
		} else {
			args = append(args, "ObjectPropertyChain("+strings.Join(a.Properties, " ")+")")
		}
		args = append(args, a.Super)
	case AxiomEquivalentProperties:
		args = append(args, a.Properties...)
		sort.Strings(args)
	case AxiomClassAssertion:
		for _, c := range a.Classes {
			args = append(args, c.String())
		}
		args = append(args, a.Individuals...)
	case AxiomPropertyAssertion:
		args = append(args, a.Properties...)
		args = append(args, a.Individuals...)
	case AxiomDeclareClass, AxiomDeclareIndividual, AxiomDeclareProperty:
		for _, c := range a.Classes {
			args = append(args, c.String())
		}
		args = append(args, a.Properties...)
		args = append(args, a.Individuals...)
		return "Declaration(" + a.head() + "(" + strings.Join(args, " ") + "))"
	default:
		for _, c := range a.Classes {
			args = append(args, c.String())
		}
		args = append(args, a.Properties...)
	}
	return a.head() + "(" + strings.Join(args, " ") + ")"
}

// Diff returns the axioms of next missing from prev (added) and the axioms
// of prev missing from next (removed), comparing by Key.
func Diff(prev, next []Axiom) (added, removed []Axiom) {
	prevKeys := make(map[string]struct{}, len(prev))
	for _, a := range prev {
		prevKeys[a.Key()] = struct{}{}
	}
	nextKeys := make(map[string]struct{}, len(next))
	for _, a := range next {
		k := a.Key()
		if _, dup := nextKeys[k]; dup {
			continue
		}
		nextKeys[k] = struct{}{}
		if _, ok := prevKeys[k]; !ok {
			added = append(added, a)
		}
	}
	seen := make(map[string]struct{}, len(prev))
	for _, a := range prev {
		k := a.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := nextKeys[k]; !ok {
			removed = append(removed, a)
		}
	}
	return added, removed
}
