package properties

import (
	"fmt"

	"saturn/internal/index"
)

// ChainPolicy decides which relations links and propagations derived
// through a property composition are recorded under.
type ChainPolicy int

const (
	// ChainPolicyDirect records links by the composition itself.
	ChainPolicyDirect ChainPolicy = iota
	// ChainPolicyToldSuper records links by the told super-properties of a
	// composition, unless the composition is the right component of a longer
	// chain.
	ChainPolicyToldSuper
)

func (p ChainPolicy) String() string {
	switch p {
	case ChainPolicyDirect:
		return "direct"
	case ChainPolicyToldSuper:
		return "told_super"
	}
	return fmt.Sprintf("ChainPolicy(%d)", int(p))
}

// ParseChainPolicy parses the configuration name of a policy.
func ParseChainPolicy(name string) (ChainPolicy, error) {
	switch name {
	case "", "direct":
		return ChainPolicyDirect, nil
	case "told_super":
		return ChainPolicyToldSuper, nil
	}
	return ChainPolicyDirect, fmt.Errorf("unknown chain policy %q", name)
}

func (s *Saturation) replaced(r *Record) bool {
	return s.policy == ChainPolicyToldSuper && r.Composition && !r.RightComponent
}

// LinkTargets returns the relations a link derived through composition t
// is recorded under.
func (s *Saturation) LinkTargets(t index.RelationID) []index.RelationID {
	r := s.Record(t)
	if r == nil {
		return nil
	}
	if s.replaced(r) {
		return r.ToldSupers
	}
	return []index.RelationID{t}
}

// Carries reports whether links by p, a sub-relation of some existential's
// property, can exist under the policy. Plain properties additionally need
// a positive existential or must be a chain target.
func (s *Saturation) Carries(p index.RelationID) bool {
	r := s.Record(p)
	return r != nil && !s.replaced(r)
}

// ChainTarget reports whether links by the named property p may be derived
// by replacing a composition with its told super-properties.
func (s *Saturation) ChainTarget(p index.RelationID) bool {
	_, ok := s.chainTargets[p]
	return ok
}
