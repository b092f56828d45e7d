package index

// Changes records what indexing and deindexing did since the last call to
// TakeChanges. The incremental maintainer uses it to find affected contexts.
type Changes struct {
	Hooked            map[NodeID]struct{} // nodes that gained a rule hook
	Unhooked          map[NodeID]struct{} // nodes that lost a rule hook
	Born              map[NodeID]struct{} // nodes that became alive
	Died              map[NodeID]struct{} // nodes that are no longer mentioned
	AddedAxioms       map[AxiomID]struct{}
	RemovedAxioms     map[AxiomID]struct{}
	PropertiesChanged bool
}

func newChanges() Changes {
	return Changes{
		Hooked:        make(map[NodeID]struct{}),
		Unhooked:      make(map[NodeID]struct{}),
		Born:          make(map[NodeID]struct{}),
		Died:          make(map[NodeID]struct{}),
		AddedAxioms:   make(map[AxiomID]struct{}),
		RemovedAxioms: make(map[AxiomID]struct{}),
	}
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Hooked) == 0 && len(c.Unhooked) == 0 && len(c.Born) == 0 &&
		len(c.Died) == 0 && len(c.AddedAxioms) == 0 && len(c.RemovedAxioms) == 0 &&
		!c.PropertiesChanged
}
