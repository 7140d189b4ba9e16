// Package qd provides the shared data model for Warren's quality-diversity
// search: genomes, the two-axis archive grid, population state and the
// immutable snapshots recorded once per search run.
//
// # Overview
//
// A Genome is one candidate floor-plan layout produced by the language-model
// mutation operator. The archive maps behaviour bins to elite genomes over two
// axes: a discrete typology axis (for example "3b2b") and a continuous axis
// sampled in fixed-width bins.
//
// The archive itself is an external collaborator. This package only defines
// the Archive contract (insert, sample, best, population export/restore) so
// that any QD algorithm satisfying it can be plugged in without touching the
// orchestrator, explorer or persistence code.
//
// # Grid Ordering
//
// Cells are stored in (typology outer, y-bin inner) order:
//
//	index = typology*yBins + yBin
//
// Snapshots use the same order, and renderers window into them at view time.
//
// # Errors
//
// Failures are classified with the sentinel errors in errors.go. Use
// errors.Is to test for ErrConfiguration, ErrPrecondition, ErrPersistence or
// ErrGeneration.
package qd
