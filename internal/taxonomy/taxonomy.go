// Package taxonomy reduces saturated subsumers to the class hierarchy:
// equivalent classes share a node and only direct edges are kept.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"saturn/internal/index"
	"saturn/internal/logging"
	"saturn/internal/ontology"
)

// ErrInconsistent is returned when the ontology has no model, so there is
// no meaningful taxonomy.
var ErrInconsistent = errors.New("ontology is inconsistent")

// Source supplies the saturated subsumers.
type Source interface {
	Classes() []index.NodeID
	Individuals() []index.NodeID
	Subsumers(id index.NodeID) []index.NodeID
	Unsatisfiable(id index.NodeID) bool
	Inconsistent() bool
	Name(id index.NodeID) string
}

// Taxonomy is the reduced class hierarchy. It is immutable once built and
// safe for concurrent use.
type Taxonomy struct {
	lookup    sync.Map // class name -> *Node
	instances sync.Map // individual name -> *InstanceNode

	top, bottom   *Node
	nodes         []*Node
	instanceNodes []*InstanceNode
}

type classInfo struct {
	id    index.NodeID
	name  string
	unsat bool
	subs  map[index.NodeID]struct{} // named subsumers, self included

	canonical string
	members   []string
	direct    []index.NodeID
}

func (c *classInfo) has(id index.NodeID) bool {
	_, ok := c.subs[id]
	return ok
}

// Build computes the taxonomy with up to workers goroutines (0 = NumCPU).
func Build(ctx context.Context, src Source, workers int) (*Taxonomy, error) {
	if src.Inconsistent() {
		return nil, ErrInconsistent
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	timer := logging.StartTimer(logging.CategoryTaxonomy, "taxonomy build")
	defer timer.StopWithInfo()

	classes := src.Classes()
	infos := make(map[index.NodeID]*classInfo, len(classes))
	for _, id := range classes {
		name := src.Name(id)
		infos[id] = &classInfo{id: id, name: name, unsat: name == ontology.NothingName || src.Unsatisfiable(id)}
	}

	// phase 1: named subsumers, equivalents and direct supers per class
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, info := range infos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info.subs = map[index.NodeID]struct{}{info.id: {}}
			for _, d := range src.Subsumers(info.id) {
				if _, ok := infos[d]; ok {
					info.subs[d] = struct{}{}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, info := range infos {
		if info.unsat {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reduce(info, infos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// phase 2: nodes and edges
	t := &Taxonomy{}
	var bottomMembers []string
	for _, info := range infos {
		if info.unsat {
			bottomMembers = append(bottomMembers, info.name)
			continue
		}
		if info.canonical != info.name {
			continue
		}
		n := newNode(info.members)
		t.nodes = append(t.nodes, n)
		for _, m := range info.members {
			t.lookup.Store(m, n)
		}
	}
	sortMembers(bottomMembers)
	t.bottom = newNode(bottomMembers)
	for _, m := range bottomMembers {
		t.lookup.Store(m, t.bottom)
	}
	t.top = t.node(ontology.ThingName)
	if t.top == nil {
		return nil, fmt.Errorf("taxonomy: %s has no node", ontology.ThingName)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, info := range infos {
		if info.unsat || info.canonical != info.name {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := t.node(info.name)
			for _, d := range info.direct {
				super := t.node(infos[d].name)
				n.addSuper(super)
				super.addSub(n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, n := range t.nodes {
		if len(n.subs) == 0 {
			n.addSub(t.bottom)
			t.bottom.addSuper(n)
		}
	}
	t.nodes = append(t.nodes, t.bottom)
	sort.Slice(t.nodes, func(i, j int) bool { return t.nodes[i].Canonical() < t.nodes[j].Canonical() })

	if err := t.buildInstances(ctx, src, infos, workers); err != nil {
		return nil, err
	}

	logging.Taxonomy("taxonomy: %d nodes, %d unsatisfiable classes, %d instance nodes",
		len(t.nodes), len(bottomMembers)-1, len(t.instanceNodes))
	return t, nil
}

// reduce computes the equivalents and the direct supers of one satisfiable
// class.
func reduce(info *classInfo, infos map[index.NodeID]*classInfo) {
	var strict []*classInfo
	for d := range info.subs {
		other := infos[d]
		if other.has(info.id) {
			info.members = append(info.members, other.name)
			continue
		}
		strict = append(strict, other)
	}
	sortMembers(info.members)
	info.canonical = info.members[0]

	for _, d := range strict {
		direct := true
		for _, e := range strict {
			if e != d && e.has(d.id) && !d.has(e.id) {
				direct = false
				break
			}
		}
		// keep one representative per equivalent super
		if direct && d.canonicalName(infos) == d.name {
			info.direct = append(info.direct, d.id)
		}
	}
}

// canonicalName computes the representative of a class without relying on
// reduce having run for it.
func (c *classInfo) canonicalName(infos map[index.NodeID]*classInfo) string {
	var members []string
	for d := range c.subs {
		if infos[d].has(c.id) {
			members = append(members, infos[d].name)
		}
	}
	sortMembers(members)
	return members[0]
}

// sortMembers orders names with owl:Thing and owl:Nothing first.
func sortMembers(names []string) {
	rank := func(s string) int {
		switch s {
		case ontology.ThingName:
			return 0
		case ontology.NothingName:
			return 1
		}
		return 2
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
}

func (t *Taxonomy) buildInstances(ctx context.Context, src Source, infos map[index.NodeID]*classInfo, workers int) error {
	individuals := src.Individuals()
	subs := make(map[index.NodeID]map[index.NodeID]struct{}, len(individuals))
	for _, id := range individuals {
		set := make(map[index.NodeID]struct{})
		for _, d := range src.Subsumers(id) {
			set[d] = struct{}{}
		}
		subs[id] = set
	}

	type group struct {
		node  *InstanceNode
		types []*Node
	}
	var groups []*group
	for _, id := range individuals {
		var members []string
		for _, j := range individuals {
			if _, fwd := subs[id][j]; !fwd && j != id {
				continue
			}
			if _, back := subs[j][id]; !back && j != id {
				continue
			}
			members = append(members, src.Name(j))
		}
		sort.Strings(members)
		if members[0] != src.Name(id) {
			continue
		}
		groups = append(groups, &group{node: &InstanceNode{members: members, types: make(map[*Node]struct{})}})
		t.instanceNodes = append(t.instanceNodes, groups[len(groups)-1].node)

		// minimal class subsumers
		var types []*classInfo
		for d := range subs[id] {
			if info, ok := infos[d]; ok {
				types = append(types, info)
			}
		}
		seen := make(map[*Node]struct{})
		for _, d := range types {
			minimal := true
			for _, e := range types {
				if e != d && !d.has(e.id) && e.has(d.id) {
					minimal = false
					break
				}
			}
			if n := t.node(d.name); minimal && n != nil {
				if _, dup := seen[n]; !dup {
					seen[n] = struct{}{}
					groups[len(groups)-1].types = append(groups[len(groups)-1].types, n)
				}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, gr := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, m := range gr.node.members {
				t.instances.Store(m, gr.node)
			}
			for _, n := range gr.types {
				gr.node.mu.Lock()
				gr.node.types[n] = struct{}{}
				gr.node.mu.Unlock()
				n.addInstance(gr.node)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sort.Slice(t.instanceNodes, func(i, j int) bool { return t.instanceNodes[i].Canonical() < t.instanceNodes[j].Canonical() })
	return nil
}

func (t *Taxonomy) node(name string) *Node {
	if v, ok := t.lookup.Load(name); ok {
		return v.(*Node)
	}
	return nil
}

// Node returns the node containing the named class.
func (t *Taxonomy) Node(name string) (*Node, bool) {
	n := t.node(name)
	return n, n != nil
}

// Instance returns the instance node of a named individual.
func (t *Taxonomy) Instance(name string) (*InstanceNode, bool) {
	if v, ok := t.instances.Load(name); ok {
		return v.(*InstanceNode), true
	}
	return nil, false
}

// Top returns the node of owl:Thing.
func (t *Taxonomy) Top() *Node { return t.top }

// Bottom returns the node of owl:Nothing and every unsatisfiable class.
func (t *Taxonomy) Bottom() *Node { return t.bottom }

// Nodes returns every class node ordered by canonical name.
func (t *Taxonomy) Nodes() []*Node { return t.nodes }

// Instances returns every instance node ordered by canonical name.
func (t *Taxonomy) Instances() []*InstanceNode { return t.instanceNodes }

// AllSuperNodes returns every node strictly above n, breadth first.
func (t *Taxonomy) AllSuperNodes(n *Node) []*Node {
	return walk(n, (*Node).DirectSupers)
}

// AllSubNodes returns every node strictly below n, breadth first.
func (t *Taxonomy) AllSubNodes(n *Node) []*Node {
	return walk(n, (*Node).DirectSubs)
}

// AllInstances returns the instance nodes of n and of every node below it.
func (t *Taxonomy) AllInstances(n *Node) []*InstanceNode {
	seen := make(map[*InstanceNode]struct{})
	var out []*InstanceNode
	for _, m := range append([]*Node{n}, t.AllSubNodes(n)...) {
		for _, i := range m.DirectInstances() {
			if _, ok := seen[i]; !ok {
				seen[i] = struct{}{}
				out = append(out, i)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical() < out[j].Canonical() })
	return out
}

// IsSubsumedBy reports whether the named class sub is below or equal to
// super.
func (t *Taxonomy) IsSubsumedBy(sub, super string) bool {
	a, b := t.node(sub), t.node(super)
	if a == nil || b == nil {
		return false
	}
	if a == b || a == t.bottom || b == t.top {
		return true
	}
	for _, n := range t.AllSuperNodes(a) {
		if n == b {
			return true
		}
	}
	return false
}

func walk(start *Node, next func(*Node) []*Node) []*Node {
	seen := map[*Node]struct{}{start: {}}
	queue := []*Node{start}
	var out []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range next(n) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
			queue = append(queue, m)
		}
	}
	return out
}
