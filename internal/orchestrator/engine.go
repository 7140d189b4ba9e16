// Package orchestrator drives one search run: seed generations, then
// mutations of archive samples, then a single history snapshot.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/history"
	"github.com/dyluth/warren/pkg/qd"
)

// Generator produces candidate genomes. seed == nil asks for an
// unconditioned generation.
type Generator interface {
	SetBatchSize(n int)
	Generate(ctx context.Context, seed *qd.Genome) ([]qd.Genome, error)
}

// EventSink receives the engine's structured events.
type EventSink func(eventType string, data map[string]interface{})

// RunParams are the parameters of one run.
type RunParams struct {
	InitSteps     int `json:"init_steps"`
	MutationSteps int `json:"mutation_steps"`
	BatchSize     int `json:"batch_size"`
}

// Validate rejects negative step counts and batch sizes below one.
func (p RunParams) Validate() error {
	if p.InitSteps < 0 {
		return fmt.Errorf("init_steps must be >= 0, got %d: %w", p.InitSteps, qd.ErrConfiguration)
	}
	if p.MutationSteps < 0 {
		return fmt.Errorf("mutation_steps must be >= 0, got %d: %w", p.MutationSteps, qd.ErrConfiguration)
	}
	if p.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d: %w", p.BatchSize, qd.ErrConfiguration)
	}
	return nil
}

// RunStats summarises the most recent run.
type RunStats struct {
	Iterations   int
	Candidates   int
	Failed       int
	InsertErrors int
	Unseeded     int // mutation iterations that fell back to unseeded generation
}

// Engine couples a generator to an archive.
// Not safe for concurrent use; callers serialise runs per session.
type Engine struct {
	archive   qd.Archive
	generator Generator
	rng       *rand.Rand
	logger    *zap.Logger
	sink      EventSink
	sessionID string
	stats     RunStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEventSink forwards every logged event to sink.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithSessionID tags events with the owning session.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.sessionID = id }
}

// NewEngine creates an engine. rng drives archive sampling.
func NewEngine(archive qd.Archive, generator Generator, rng *rand.Rand, opts ...Option) *Engine {
	e := &Engine{
		archive:   archive,
		generator: generator,
		rng:       rng,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

// Archive returns the engine's archive.
func (e *Engine) Archive() qd.Archive {
	return e.archive
}

// LastStats returns counters from the most recent run.
func (e *Engine) LastStats() RunStats {
	return e.stats
}

// Run performs InitSteps unseeded and MutationSteps seeded iterations and
// appends exactly one snapshot to steps, even when the run aborts partway.
// It returns the archive's best elite, or the zero Elite if it is empty.
//
// Per-genome failures and archive insert errors never abort the run. A
// configuration error from the generator or a cancelled context does.
func (e *Engine) Run(ctx context.Context, steps *history.Store, p RunParams) (qd.Elite, error) {
	if err := p.Validate(); err != nil {
		runsTotal.WithLabelValues("rejected").Inc()
		return qd.Elite{}, err
	}

	e.stats = RunStats{}
	e.archive.SetBatchSize(p.BatchSize)
	e.generator.SetBatchSize(p.BatchSize)

	startTime := time.Now()
	e.logEvent("run_started", map[string]interface{}{
		"init_steps":     p.InitSteps,
		"mutation_steps": p.MutationSteps,
		"batch_size":     p.BatchSize,
	})

	runErr := e.iterate(ctx, p)

	length := steps.Append(qd.NewSnapshot(e.archive.Population().Genomes))
	best, _ := e.archive.Best()

	result := "completed"
	if runErr != nil {
		result = "aborted"
	}
	duration := time.Since(startTime)
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(duration.Seconds())

	data := map[string]interface{}{
		"result":        result,
		"iterations":    e.stats.Iterations,
		"candidates":    e.stats.Candidates,
		"failed":        e.stats.Failed,
		"insert_errors": e.stats.InsertErrors,
		"unseeded":      e.stats.Unseeded,
		"best_fitness":  best.Fitness,
		"steps":         length,
		"duration_ms":   duration.Milliseconds(),
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	e.logEvent("run_completed", data)

	return best, runErr
}

func (e *Engine) iterate(ctx context.Context, p RunParams) error {
	total := p.InitSteps + p.MutationSteps
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var seed *qd.Genome
		phase := "init"
		if i >= p.InitSteps {
			phase = "mutation"
			if g, ok := e.archive.Sample(e.rng); ok {
				seed = &g
			} else {
				e.stats.Unseeded++
			}
		}

		if err := e.step(ctx, i, phase, seed); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step(ctx context.Context, iteration int, phase string, seed *qd.Genome) error {
	genomes, err := e.generator.Generate(ctx, seed)
	if err != nil {
		if errors.Is(err, qd.ErrConfiguration) {
			return fmt.Errorf("generation failed at iteration %d: %w", iteration, err)
		}
		// Anything else is treated like a wholly failed batch.
		e.logEvent("generation_failed", map[string]interface{}{
			"iteration": iteration,
			"phase":     phase,
			"error":     err.Error(),
		})
		genomes = nil
	}

	failed := 0
	for _, g := range genomes {
		if !g.OK() {
			failed++
		}
	}
	e.stats.Iterations++
	e.stats.Candidates += len(genomes)
	e.stats.Failed += failed
	candidatesTotal.WithLabelValues("ok").Add(float64(len(genomes) - failed))
	candidatesTotal.WithLabelValues("failed").Add(float64(failed))

	insertErr := ""
	if len(genomes) > 0 {
		if err := e.archive.Insert(ctx, genomes); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.stats.InsertErrors++
			insertErrorsTotal.Inc()
			insertErr = err.Error()
		}
	}

	data := map[string]interface{}{
		"iteration":  iteration,
		"phase":      phase,
		"seeded":     seed != nil,
		"candidates": len(genomes),
		"failed":     failed,
	}
	if insertErr != "" {
		data["insert_error"] = insertErr
	}
	e.logEvent("iteration_completed", data)
	return nil
}

// logEvent logs a structured event and forwards it to the event sink.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["component"] = "orchestrator"
	data["event_type"] = eventType
	if e.sessionID != "" {
		data["session_id"] = e.sessionID
	}

	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	e.logger.Info(eventType, fields...)

	if e.sink != nil {
		e.sink(eventType, data)
	}
}
