package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/dyluth/warren/internal/history"
	"github.com/dyluth/warren/internal/mutation"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/viewport"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

const persistTimeout = 5 * time.Second

// Session is one locked request's view of a session record.
// Not safe for concurrent use.
type Session struct {
	svc     *Service
	record  *store.SessionRecord
	lock    *store.SessionLock
	created bool
	closed  bool
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.record.SessionID
}

// Created reports whether the record did not exist before Open.
func (s *Session) Created() bool {
	return s.created
}

// Record returns a copy of the current record.
func (s *Session) Record() *store.SessionRecord {
	return s.record.Clone()
}

// Run executes one search run with the record's population and appends its
// snapshot to the record's history. The batch size becomes the session's
// new default. The record is updated even when the run aborts after
// appending its snapshot.
func (s *Session) Run(ctx context.Context, p orchestrator.RunParams, credential string) (qd.Elite, error) {
	if err := p.Validate(); err != nil {
		return qd.Elite{}, err
	}

	decoder, err := s.svc.decoders(credential)
	if err != nil {
		return qd.Elite{}, err
	}

	archive, err := s.svc.archives()
	if err != nil {
		return qd.Elite{}, fmt.Errorf("failed to build archive: %w", err)
	}
	if s.record.Population != nil {
		if err := archive.Restore(s.record.Population); err != nil {
			return qd.Elite{}, fmt.Errorf("failed to restore population: %w", err)
		}
	}

	rng := s.svc.rngFor(len(s.record.Steps))
	synth, err := mutation.New(s.svc.cfg.Mutation.Prompts, decoder, rng)
	if err != nil {
		return qd.Elite{}, err
	}

	sessionID := s.ID()
	engine := orchestrator.NewEngine(archive, synth, rng,
		orchestrator.WithLogger(s.svc.logger),
		orchestrator.WithSessionID(sessionID),
		orchestrator.WithEventSink(func(eventType string, data map[string]interface{}) {
			s.svc.publish(sessionID, eventType, data)
		}),
	)

	steps := history.New(s.record.Steps...)
	before := steps.Len()
	best, runErr := engine.Run(ctx, steps, p)

	if steps.Len() > before {
		s.record.Population = archive.Population()
		s.record.Steps = steps.Snapshots()
		s.record.BatchSize = p.BatchSize
		// a pinned step keeps pointing at the same snapshot; new runs are
		// only followed automatically when nothing is pinned
	}
	return best, runErr
}

// Click selects a window-local cell; viewport.NoClick clears the selection.
func (s *Session) Click(index int) error {
	e := s.svc.explorer(s.record.Viewport)
	if err := e.Click(index); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	s.record.Viewport = e.State
	return nil
}

// Recenter moves the window onto the last click. No-op without a click.
func (s *Session) Recenter() error {
	e := s.svc.explorer(s.record.Viewport)
	if err := e.Validate(); err != nil {
		return err
	}
	e.Recenter()
	s.record.Viewport = e.State
	return nil
}

// SelectStep pins the displayed step. nil follows the latest step.
func (s *Session) SelectStep(step *int) error {
	if step != nil {
		if _, err := history.New(s.record.Steps...).Resolve(step); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
		}
		n := *step
		step = &n
	}
	s.record.SelectedStep = step
	return nil
}

// View renders the window over a step. step overrides the pinned step
// without changing it.
func (s *Session) View(step *int) (*View, error) {
	return buildView(s.svc, s.record, step)
}

// Tile renders one window cell of a step.
func (s *Session) Tile(step *int, index int) (image.Image, error) {
	return renderTile(s.svc, s.record, step, index)
}

// SaveCheckpoint writes the current population to the global checkpoint.
// It reports false without writing when the session has never run.
func (s *Session) SaveCheckpoint(ctx context.Context) (bool, error) {
	if s.record.Population == nil {
		return false, nil
	}
	if err := s.svc.checkpoints.SaveCheckpoint(ctx, store.CheckpointFromPopulation(s.record.Population)); err != nil {
		return false, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	s.svc.logEvent("checkpoint_saved", map[string]interface{}{
		"session_id": s.ID(),
		"occupied":   s.record.Population.Genomes.Occupied(),
	})
	s.svc.publish(s.ID(), "checkpoint_saved", map[string]interface{}{})
	return true, nil
}

// LoadCheckpoint replaces the session's population with the global
// checkpoint and resets its history to a single snapshot of it. The
// credential is checked first so a later run cannot fail on it. On any
// failure the record is untouched.
func (s *Session) LoadCheckpoint(ctx context.Context, credential string) error {
	if _, err := s.svc.decoders(credential); err != nil {
		return err
	}

	cp, err := s.svc.checkpoints.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}

	archive, err := s.svc.archives()
	if err != nil {
		return fmt.Errorf("failed to build archive: %w", err)
	}
	if err := archive.Restore(cp.Population()); err != nil {
		if errors.Is(err, qd.ErrPersistence) {
			return err
		}
		return fmt.Errorf("checkpoint does not fit the archive: %v: %w", err, qd.ErrPersistence)
	}

	pop := archive.Population()
	steps := history.New()
	steps.Reset(qd.NewSnapshot(pop.Genomes))

	s.record.Population = pop
	s.record.Steps = steps.Snapshots()
	s.record.SelectedStep = nil

	s.svc.logEvent("checkpoint_loaded", map[string]interface{}{
		"session_id": s.ID(),
		"occupied":   pop.Genomes.Occupied(),
	})
	s.svc.publish(s.ID(), "checkpoint_loaded", map[string]interface{}{})
	return nil
}

// Save persists the record without releasing the lock. The write ignores
// cancellation of ctx: a request abandoned by its client still keeps the
// snapshot its run already appended.
func (s *Session) Save(ctx context.Context) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	s.record.UpdatedAtMs = time.Now().UnixMilli()
	if err := s.svc.client.SaveSession(saveCtx, s.record); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID(), err)
	}
	return nil
}

// Close persists the record and releases the lock. Safe to call twice.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.svc.release(s.lock)
	return s.Save(ctx)
}

// Explorer returns a viewport explorer positioned at the record's state.
func (s *Session) Explorer() *viewport.Explorer {
	return s.svc.explorer(s.record.Viewport)
}
