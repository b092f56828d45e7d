package store

import (
	"sort"
	"strings"

	"saturn/internal/taxonomy"
)

// Edge is a direct subsumption between two canonical class names.
type Edge struct {
	Sub, Super string
}

// Change lists what differs between two snapshots.
type Change struct {
	AddedEdges   []Edge
	RemovedEdges []Edge
	// classes whose equivalence class differs (added, removed or regrouped)
	Regrouped []string
	// individuals whose direct types differ
	Retyped []string
}

// Empty reports whether the snapshots classify identically.
func (c Change) Empty() bool {
	return len(c.AddedEdges) == 0 && len(c.RemovedEdges) == 0 &&
		len(c.Regrouped) == 0 && len(c.Retyped) == 0
}

// Canonical returns the canonical name of the node holding class, if any.
func (s *Snapshot) Canonical(class string) (string, bool) {
	for canon, members := range s.Members {
		for _, m := range members {
			if m == class {
				return canon, true
			}
		}
	}
	return "", false
}

func (s *Snapshot) edges() map[Edge]bool {
	out := make(map[Edge]bool)
	for sub, supers := range s.Supers {
		for _, sup := range supers {
			out[Edge{sub, sup}] = true
		}
	}
	return out
}

// classOf maps every class name to the sorted members of its node.
func (s *Snapshot) classOf() map[string]string {
	out := make(map[string]string)
	for _, members := range s.Members {
		key := joinSorted(members)
		for _, m := range members {
			out[m] = key
		}
	}
	return out
}

// typesOf maps every individual to its sorted direct types.
func (s *Snapshot) typesOf() map[string]string {
	out := make(map[string]string)
	for grp, inds := range s.Groups {
		key := joinSorted(s.Types[grp])
		for _, ind := range inds {
			out[ind] = key
		}
	}
	return out
}

// Compare lists the differences from prev to next.
func Compare(prev, next *Snapshot) Change {
	var c Change

	pe, ne := prev.edges(), next.edges()
	for e := range ne {
		if !pe[e] {
			c.AddedEdges = append(c.AddedEdges, e)
		}
	}
	for e := range pe {
		if !ne[e] {
			c.RemovedEdges = append(c.RemovedEdges, e)
		}
	}

	c.Regrouped = diffKeys(prev.classOf(), next.classOf())
	c.Retyped = diffKeys(prev.typesOf(), next.typesOf())

	sortEdges(c.AddedEdges)
	sortEdges(c.RemovedEdges)
	return c
}

func diffKeys(a, b map[string]string) []string {
	var out []string
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func joinSorted(names []string) string {
	return strings.Join(sorted(names), "\x00")
}

func sortEdges(es []Edge) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Sub != es[j].Sub {
			return es[i].Sub < es[j].Sub
		}
		return es[i].Super < es[j].Super
	})
}

// SnapshotOf captures tax in memory, without storing it.
func SnapshotOf(run Run, tax *taxonomy.Taxonomy) *Snapshot {
	snap := &Snapshot{
		Run:     run,
		Members: make(map[string][]string),
		Supers:  make(map[string][]string),
		Groups:  make(map[string][]string),
		Types:   make(map[string][]string),
	}
	for _, n := range tax.Nodes() {
		snap.Members[n.Canonical()] = sorted(n.Members())
		for _, sup := range n.DirectSupers() {
			snap.Supers[n.Canonical()] = append(snap.Supers[n.Canonical()], sup.Canonical())
		}
		sort.Strings(snap.Supers[n.Canonical()])
	}
	for _, i := range tax.Instances() {
		snap.Groups[i.Canonical()] = sorted(i.Members())
		for _, t := range i.DirectTypes() {
			snap.Types[i.Canonical()] = append(snap.Types[i.Canonical()], t.Canonical())
		}
		sort.Strings(snap.Types[i.Canonical()])
	}
	return snap
}

func sorted(names []string) []string {
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	return cp
}
