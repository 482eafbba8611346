// Package derive recomputes all of Grove's application state from the
// event log.
//
// State is a pure function of the event set: deduplicate, sort into the
// total derivation order, fold. Re-deriving from the same events, in
// any input order, yields identical output. Nothing in this package
// performs I/O or reads the wall clock; callers pass "now" explicitly.
//
// The windowed water/sun availability values are deliberately not part
// of the fold. They are computed on demand from the event log and the
// current reset boundary, never stored as mutable counters.
package derive
