package ontology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ontology is a named list of axioms as stored in a YAML fixture:
//
//	name: pizza
//	axioms:
//	  - subClassOf: [Margherita, {some: {property: hasTopping, filler: Tomato}}]
//	  - equivalentClasses: [A, {and: [B, C]}]
//	  - disjointClasses: [Meat, Vegetable]
//	  - subPropertyOf: {sub: [hasPart, hasPart], super: hasPart}
//	  - reflexive: partOf
//	  - transitive: partOf
//	  - classAssertion: {class: Pizza, individual: p1}
//	  - propertyAssertion: {property: hasTopping, subject: p1, object: t1}
//	  - declareClass: Dough
//
// Class expressions are either a class name or a single-key mapping:
// and, or (sequences), not, some ({property, filler}), individual.
type Ontology struct {
	Name   string  `yaml:"name"`
	Axioms []Axiom `yaml:"axioms"`
}

// Load reads and validates an ontology fixture.
func Load(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology: %w", err)
	}
	o, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

// Parse decodes an ontology from YAML.
func Parse(data []byte) (*Ontology, error) {
	var o Ontology
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	for i, a := range o.Axioms {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("axiom %d: %w", i, err)
		}
	}
	return &o, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *ClassExpr) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Class(node.Value)
		return nil
	case yaml.MappingNode:
	default:
		return malformed("line %d: class expression must be a name or a mapping", node.Line)
	}

	key, value, err := singleEntry(node)
	if err != nil {
		return err
	}
	switch key {
	case "and", "or":
		var ops []ClassExpr
		if err := value.Decode(&ops); err != nil {
			return err
		}
		if key == "and" {
			*e = And(ops...)
		} else {
			*e = Or(ops...)
		}
	case "not":
		var op ClassExpr
		if err := value.Decode(&op); err != nil {
			return err
		}
		*e = Not(op)
	case "some":
		var s struct {
			Property string    `yaml:"property"`
			Filler   ClassExpr `yaml:"filler"`
		}
		if err := value.Decode(&s); err != nil {
			return err
		}
		*e = Some(s.Property, s.Filler)
	case "individual":
		*e = Nominal(value.Value)
	default:
		return malformed("line %d: unknown class constructor %q", node.Line, key)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Axiom) UnmarshalYAML(node *yaml.Node) error {
	key, value, err := singleEntry(node)
	if err != nil {
		return err
	}

	switch key {
	case "subClassOf":
		var pair []ClassExpr
		if err := value.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return malformed("line %d: subClassOf takes [sub, super]", node.Line)
		}
		*a = SubClassOf(pair[0], pair[1])
	case "equivalentClasses", "disjointClasses":
		var members []ClassExpr
		if err := value.Decode(&members); err != nil {
			return err
		}
		if key == "equivalentClasses" {
			*a = EquivalentClasses(members...)
		} else {
			*a = DisjointClasses(members...)
		}
	case "subPropertyOf":
		var s struct {
			Sub   yaml.Node `yaml:"sub"`
			Super string    `yaml:"super"`
		}
		if err := value.Decode(&s); err != nil {
			return err
		}
		var chain []string
		if s.Sub.Kind == yaml.SequenceNode {
			if err := s.Sub.Decode(&chain); err != nil {
				return err
			}
		} else {
			chain = []string{s.Sub.Value}
		}
		*a = SubPropertyChainOf(chain, s.Super)
	case "equivalentProperties":
		var members []string
		if err := value.Decode(&members); err != nil {
			return err
		}
		*a = EquivalentProperties(members...)
	case "reflexive":
		*a = ReflexiveProperty(value.Value)
	case "transitive":
		*a = TransitiveProperty(value.Value)
	case "classAssertion":
		var s struct {
			Class      ClassExpr `yaml:"class"`
			Individual string    `yaml:"individual"`
		}
		if err := value.Decode(&s); err != nil {
			return err
		}
		*a = ClassAssertion(s.Class, s.Individual)
	case "propertyAssertion":
		var s struct {
			Property string `yaml:"property"`
			Subject  string `yaml:"subject"`
			Object   string `yaml:"object"`
		}
		if err := value.Decode(&s); err != nil {
			return err
		}
		*a = PropertyAssertion(s.Property, s.Subject, s.Object)
	case "declareClass":
		*a = DeclareClass(value.Value)
	case "declareIndividual":
		*a = DeclareIndividual(value.Value)
	case "declareProperty":
		*a = DeclareProperty(value.Value)
	default:
		return malformed("line %d: unknown axiom type %q", node.Line, key)
	}
	return nil
}

func singleEntry(node *yaml.Node) (string, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, malformed("line %d: expected a mapping with exactly one key", node.Line)
	}
	return node.Content[0].Value, node.Content[1], nil
}
