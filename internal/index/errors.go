package index

import "errors"

var (
	// ErrUnsupportedConstruct is returned for expressions outside the
	// supported normal form, e.g. a union on the subsumer side.
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	// ErrDuplicateAxiom is returned when an axiom is indexed twice.
	ErrDuplicateAxiom = errors.New("axiom already indexed")
	// ErrUnknownAxiom is returned when deindexing an axiom that is not indexed.
	ErrUnknownAxiom = errors.New("axiom not indexed")
)
