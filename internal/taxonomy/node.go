package taxonomy

import (
	"sort"
	"sync"
)

// Node is a class of equivalent named classes with its direct neighbours.
type Node struct {
	mu        sync.RWMutex
	members   []string
	supers    map[*Node]struct{}
	subs      map[*Node]struct{}
	instances map[*InstanceNode]struct{}
}

func newNode(members []string) *Node {
	return &Node{
		members:   members,
		supers:    make(map[*Node]struct{}),
		subs:      make(map[*Node]struct{}),
		instances: make(map[*InstanceNode]struct{}),
	}
}

// Members returns the equivalent class names, sorted.
func (n *Node) Members() []string { return n.members }

// Canonical returns the representative member.
func (n *Node) Canonical() string { return n.members[0] }

func (n *Node) String() string { return n.Canonical() }

// DirectSupers returns the direct super-nodes ordered by canonical name.
func (n *Node) DirectSupers() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return sortedNodes(n.supers)
}

// DirectSubs returns the direct sub-nodes ordered by canonical name.
func (n *Node) DirectSubs() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return sortedNodes(n.subs)
}

// DirectInstances returns the instance nodes having n as a direct type.
func (n *Node) DirectInstances() []*InstanceNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*InstanceNode, 0, len(n.instances))
	for i := range n.instances {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical() < out[j].Canonical() })
	return out
}

func (n *Node) addSuper(s *Node) {
	n.mu.Lock()
	n.supers[s] = struct{}{}
	n.mu.Unlock()
}

func (n *Node) addSub(s *Node) {
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
}

func (n *Node) addInstance(i *InstanceNode) {
	n.mu.Lock()
	n.instances[i] = struct{}{}
	n.mu.Unlock()
}

// InstanceNode is a group of individuals with the same types.
type InstanceNode struct {
	mu      sync.RWMutex
	members []string
	types   map[*Node]struct{}
}

// Members returns the individual names, sorted.
func (i *InstanceNode) Members() []string { return i.members }

// Canonical returns the representative individual.
func (i *InstanceNode) Canonical() string { return i.members[0] }

// DirectTypes returns the most specific class nodes of the individual.
func (i *InstanceNode) DirectTypes() []*Node {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedNodes(i.types)
}

func sortedNodes(set map[*Node]struct{}) []*Node {
	out := make([]*Node, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical() < out[j].Canonical() })
	return out
}
