package qd

import (
	"context"
	"math/rand/v2"
)

// Archive is the external QD archive collaborator. Implementations own cell
// assignment, fitness and behaviour computation and the replacement rule.
type Archive interface {
	// SetBatchSize sets how many candidates each generation step produces.
	SetBatchSize(n int)

	// BatchSize returns the current batch size.
	BatchSize() int

	// Insert evaluates and offers a batch of genomes to the archive.
	// Rejected genomes (including ones with a nonzero error code) must not
	// cause an error; they are the archive's to discard or recycle.
	Insert(ctx context.Context, batch []Genome) error

	// Sample picks a parent genome for mutation. Returns false when empty.
	Sample(rng *rand.Rand) (Genome, bool)

	// Best returns the elite with the highest fitness. Returns false when empty.
	Best() (Elite, bool)

	// Population returns a deep copy of the archive's persistable state.
	Population() *Population

	// Restore replaces the archive's state with p.
	Restore(p *Population) error

	// Axes describes the archive's typology labels and continuous axis.
	Axes() ([]string, Axis)
}
