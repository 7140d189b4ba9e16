// Package mutation turns a parent layout (or nothing) into a prompt for the
// language model and wraps the decoded continuations into candidate genomes.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dyluth/warren/pkg/qd"
)

// SegmentSeparator splits a layout description into ordered room segments.
const SegmentSeparator = ", "

// RoomLabels is the fixed set of labels forced onto the end of a mutation
// prompt to steer the next room the model writes.
var RoomLabels = []string{"bedroom1", "kitchen", "living_room", "corridor", "bathroom1"}

// Decoder is the language-model collaborator: one prompt in, n decoded
// continuations out.
type Decoder interface {
	BatchDecode(ctx context.Context, prompt string, n int) ([]string, error)
}

// Synthesizer builds prompts from seeds and wraps model output as genomes.
// Not safe for concurrent use: it owns its random source.
type Synthesizer struct {
	prompts   []string
	decoder   Decoder
	rng       *rand.Rand
	batchSize int
}

// New creates a synthesizer over a nonempty base-prompt set.
func New(prompts []string, decoder Decoder, rng *rand.Rand) (*Synthesizer, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("base prompt set is empty: %w", qd.ErrConfiguration)
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is required: %w", qd.ErrConfiguration)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{
		prompts:   append([]string{}, prompts...),
		decoder:   decoder,
		rng:       rng,
		batchSize: 1,
	}, nil
}

// SetBatchSize sets how many continuations each Generate call requests.
func (s *Synthesizer) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	s.batchSize = n
}

// BatchSize returns the number of genomes Generate produces.
func (s *Synthesizer) BatchSize() int {
	return s.batchSize
}

// Generate produces exactly BatchSize genomes from one prompt.
//
// Only configuration failures are returned as errors. Any other decoder
// failure is absorbed into genomes carrying a nonzero error code so the
// caller's run continues.
func (s *Synthesizer) Generate(ctx context.Context, seed *qd.Genome) ([]qd.Genome, error) {
	prompt, err := s.BuildPrompt(seed)
	if err != nil {
		return nil, err
	}

	decoded, err := s.decoder.BatchDecode(ctx, prompt, s.batchSize)
	if err != nil {
		if errors.Is(err, qd.ErrConfiguration) {
			return nil, err
		}
		decoded = nil
	}

	genomes := make([]qd.Genome, 0, s.batchSize)
	for i := 0; i < s.batchSize; i++ {
		if i >= len(decoded) {
			genomes = append(genomes, failedGenome(prompt, qd.ErrorCodeDecodeFailed))
			continue
		}
		text := decoded[i]
		if strings.TrimSpace(text) == "" {
			genomes = append(genomes, failedGenome(prompt, qd.ErrorCodeEmptyOutput))
			continue
		}
		genomes = append(genomes, qd.Genome{ProgramStr: text, ResultObj: text, ErrorCode: qd.ErrorCodeOK})
	}
	return genomes, nil
}

// BuildPrompt returns the prompt for seed. With no seed it is a random base
// prompt. With a seed it hybridizes a random base prompt, the first one or
// two segments of the parent and a forced next room label.
func (s *Synthesizer) BuildPrompt(seed *qd.Genome) (string, error) {
	if len(s.prompts) == 0 {
		return "", fmt.Errorf("base prompt set is empty: %w", qd.ErrConfiguration)
	}
	base := s.prompts[s.rng.IntN(len(s.prompts))]
	if seed == nil {
		return base, nil
	}

	segments := strings.Split(seed.ProgramStr, SegmentSeparator)
	cut := s.CutOff(len(segments))
	if cut > len(segments) {
		cut = len(segments)
	}
	room := RoomLabels[s.rng.IntN(len(RoomLabels))]

	return base + " " + strings.Join(segments[:cut], SegmentSeparator) + SegmentSeparator + room + ":", nil
}

// CutOff draws how many leading parent segments to keep: uniformly 1 or 2,
// never more than segmentCount-1 and never less than 1.
func (s *Synthesizer) CutOff(segmentCount int) int {
	c := 1 + s.rng.IntN(2)
	return max(1, min(c, segmentCount-1))
}

func failedGenome(text string, code int) qd.Genome {
	return qd.Genome{ProgramStr: text, ResultObj: text, ErrorCode: code}
}
