package mutation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dyluth/warren/pkg/qd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder records prompts and echoes them back with a numbered suffix.
type fakeDecoder struct {
	prompts []string
	short   int // return this many fewer results than asked
	err     error
	empty   bool
}

func (f *fakeDecoder) BatchDecode(ctx context.Context, prompt string, n int) ([]string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, n)
	for i := 0; i < n-f.short; i++ {
		if f.empty {
			out = append(out, "  ")
			continue
		}
		out = append(out, fmt.Sprintf("%s bedroom1: (%d,0)(10,0)(10,10)(0,10)", prompt, i))
	}
	return out, nil
}

var basePrompts = []string{"[prompt] a house with two bedrooms [layout]", "[prompt] a small flat [layout]"}

func newTestSynthesizer(t *testing.T, dec Decoder) *Synthesizer {
	t.Helper()
	s, err := New(basePrompts, dec, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	return s
}

func TestNew_EmptyPromptSet(t *testing.T) {
	_, err := New(nil, &fakeDecoder{}, nil)
	require.Error(t, err)
	assert.True(t, qd.IsConfiguration(err))
}

func TestGenerate_Unseeded(t *testing.T) {
	dec := &fakeDecoder{}
	s := newTestSynthesizer(t, dec)
	s.SetBatchSize(3)

	genomes, err := s.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, genomes, 3)
	require.Len(t, dec.prompts, 1, "one prompt per batch")

	assert.Contains(t, basePrompts, dec.prompts[0])
	for _, g := range genomes {
		assert.Equal(t, qd.ErrorCodeOK, g.ErrorCode)
		assert.Equal(t, g.ProgramStr, g.ResultObj)
		assert.True(t, strings.HasPrefix(g.ProgramStr, dec.prompts[0]))
	}
}

func TestBuildPrompt_Seeded(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{})
	seed := &qd.Genome{ProgramStr: "A, B, C, D"}

	for i := 0; i < 200; i++ {
		prompt, err := s.BuildPrompt(seed)
		require.NoError(t, err)

		var base string
		for _, p := range basePrompts {
			if strings.HasPrefix(prompt, p+" ") {
				base = p
			}
		}
		require.NotEmpty(t, base, "prompt %q must start with a base prompt", prompt)

		rest := strings.TrimPrefix(prompt, base+" ")
		require.True(t, strings.HasSuffix(rest, ":"))
		parts := strings.Split(strings.TrimSuffix(rest, ":"), SegmentSeparator)
		room := parts[len(parts)-1]
		assert.Contains(t, RoomLabels, room)

		kept := parts[:len(parts)-1]
		assert.True(t, len(kept) == 1 || len(kept) == 2, "kept %v", kept)
		assert.Equal(t, []string{"A", "B"}[:len(kept)], kept)
	}
}

func TestCutOff(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{})

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		c := s.CutOff(4)
		assert.True(t, c >= 1 && c <= 3)
		seen[c] = true
	}
	assert.True(t, seen[1] && seen[2], "both cut-offs should be drawn")
	assert.False(t, seen[3])

	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, s.CutOff(1), "single segment forces cut-off 1")
		assert.Equal(t, 1, s.CutOff(2), "cut-off never exceeds segment_count-1")
	}
}

func TestBuildPrompt_SingleSegmentSeed(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{})

	prompt, err := s.BuildPrompt(&qd.Genome{ProgramStr: "bedroom1: (0,0)(1,1)"})
	require.NoError(t, err)
	assert.Contains(t, prompt, " bedroom1: (0,0)(1,1), ")

	prompt, err = s.BuildPrompt(&qd.Genome{ProgramStr: ""})
	require.NoError(t, err)
	assert.Contains(t, prompt, " , ")
}

func TestGenerate_DecoderFailureIsAbsorbed(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{err: errors.New("503 from upstream")})
	s.SetBatchSize(2)

	genomes, err := s.Generate(context.Background(), &qd.Genome{ProgramStr: "A, B"})
	require.NoError(t, err)
	require.Len(t, genomes, 2)
	for _, g := range genomes {
		assert.Equal(t, qd.ErrorCodeDecodeFailed, g.ErrorCode)
	}
}

func TestGenerate_MissingCredentialIsFatal(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{err: fmt.Errorf("OPENAI_API_KEY not set: %w", qd.ErrConfiguration)})

	_, err := s.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, qd.IsConfiguration(err))
}

func TestGenerate_ShortAndEmptyBatches(t *testing.T) {
	s := newTestSynthesizer(t, &fakeDecoder{short: 1})
	s.SetBatchSize(3)

	genomes, err := s.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, genomes, 3)
	assert.Equal(t, qd.ErrorCodeOK, genomes[0].ErrorCode)
	assert.Equal(t, qd.ErrorCodeDecodeFailed, genomes[2].ErrorCode)

	s = newTestSynthesizer(t, &fakeDecoder{empty: true})
	s.SetBatchSize(2)
	genomes, err = s.Generate(context.Background(), nil)
	require.NoError(t, err)
	for _, g := range genomes {
		assert.Equal(t, qd.ErrorCodeEmptyOutput, g.ErrorCode)
	}
}
