// Package session threads an explicit SessionRecord through each explorer
// request: lock, load, act, persist, unlock.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/elites"
	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/mutation"
	"github.com/dyluth/warren/internal/viewport"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

// ErrInvalidArgument marks a request argument outside its valid range, such
// as a click index past the window or an unknown step.
var ErrInvalidArgument = errors.New("invalid argument")

// DecoderFactory builds the language-model decoder for one request.
// credential is the operator-supplied key and may be empty.
type DecoderFactory func(credential string) (mutation.Decoder, error)

// ArchiveFactory builds an empty archive.
type ArchiveFactory func() (qd.Archive, error)

// Service opens sessions against a store.
type Service struct {
	cfg         *config.Config
	client      *store.Client
	checkpoints store.CheckpointStore
	decoders    DecoderFactory
	archives    ArchiveFactory
	renderer    *floorplan.Renderer
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDecoderFactory overrides how decoders are built.
func WithDecoderFactory(f DecoderFactory) Option {
	return func(s *Service) { s.decoders = f }
}

// WithArchiveFactory overrides how archives are built.
func WithArchiveFactory(f ArchiveFactory) Option {
	return func(s *Service) { s.archives = f }
}

// WithCheckpointStore overrides the checkpoint backend.
func WithCheckpointStore(cs store.CheckpointStore) Option {
	return func(s *Service) { s.checkpoints = cs }
}

// NewService creates a session service. By default checkpoints go to the
// backend named in cfg, decoders follow cfg.Model and archives are the
// reference elites archive.
func NewService(cfg *config.Config, client *store.Client, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		client:   client,
		renderer: floorplan.NewRenderer(cfg.Render.TileSize),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.checkpoints == nil {
		if cfg.Checkpoint.Backend == config.CheckpointFile {
			s.checkpoints = store.NewFileCheckpointStore(cfg.Checkpoint.Dir)
		} else {
			s.checkpoints = client
		}
	}
	if s.decoders == nil {
		s.decoders = ConfiguredDecoders(cfg, s.logger)
	}
	if s.archives == nil {
		s.archives = func() (qd.Archive, error) {
			return elites.New(cfg.Archive.Typologies, cfg.YAxis(), cfg.Archive.RecycledMax)
		}
	}
	return s
}

// ConfiguredDecoders returns the decoder factory described by cfg.Model.
func ConfiguredDecoders(cfg *config.Config, logger *zap.Logger) DecoderFactory {
	return func(credential string) (mutation.Decoder, error) {
		if cfg.Model.Provider == config.ProviderStatic {
			return &llm.StaticDecoder{Completions: llm.DemoCompletions}, nil
		}
		return llm.NewOpenAIDecoder(credential, llm.Options{
			Model:         cfg.Model.Name,
			MaxTokens:     cfg.Model.MaxTokens,
			Temperature:   *cfg.Model.Temperature,
			BaseURL:       cfg.Model.BaseURL,
			CredentialEnv: cfg.Model.CredentialEnv,
		}, logger)
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Checkpoints returns the configured global checkpoint store.
func (s *Service) Checkpoints() store.CheckpointStore {
	return s.checkpoints
}

// Renderer returns the tile renderer.
func (s *Service) Renderer() *floorplan.Renderer {
	return s.renderer
}

// Defaults returns the record a session starts from: the configured batch
// size and viewport and a single blank step.
func (s *Service) Defaults(sessionID string) *store.SessionRecord {
	r := store.NewSessionRecord(sessionID, s.cfg.Run.BatchSize, viewport.State{
		XStart:      0,
		YStart:      *s.cfg.Viewport.YStart,
		LastClicked: viewport.NoClick,
	})
	r.Steps = []qd.Snapshot{qd.BlankSnapshot(len(s.cfg.Archive.Typologies), s.cfg.Archive.YAxis.Bins)}
	return r
}

// Open locks the session and loads its record, creating it in memory on
// first contact. The caller must Close the session.
func (s *Service) Open(ctx context.Context, sessionID string) (*Session, error) {
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}

	lock, err := s.client.AcquireSessionLock(ctx, sessionID, s.cfg.Redis.LockTTL)
	if err != nil {
		return nil, err
	}

	defaults := s.Defaults(sessionID)
	record, err := s.client.LoadSession(ctx, sessionID, *defaults)
	created := false
	if store.IsNotFound(err) {
		record, err = defaults, nil
		created = true
	}
	if err != nil {
		s.release(lock)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	s.logEvent("session_opened", map[string]interface{}{
		"session_id": sessionID,
		"created":    created,
		"steps":      len(record.Steps),
	})

	return &Session{svc: s, record: record, lock: lock, created: created}, nil
}

// Get loads a session read-only, without taking its lock.
func (s *Service) Get(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	return s.client.LoadSession(ctx, sessionID, *s.Defaults(sessionID))
}

// Do opens the session, runs fn and closes it. The record is persisted
// even when fn fails, so partial progress (such as a run aborted after its
// snapshot) is not lost.
func (s *Service) Do(ctx context.Context, sessionID string, fn func(*Session) error) error {
	sess, err := s.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	fnErr := fn(sess)
	closeErr := sess.Close(ctx)
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

func (s *Service) release(lock *store.SessionLock) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.ReleaseSessionLock(ctx, lock); err != nil {
		s.logger.Warn("failed to release session lock", zap.String("session_id", lock.SessionID), zap.Error(err))
	}
}

func (s *Service) publish(sessionID, eventType string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event := &store.Event{Type: eventType, SessionID: sessionID, Data: data}
	if err := s.client.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event", zap.String("event_type", eventType), zap.Error(err))
	}
}

// logEvent logs a structured event in the service's JSON shape.
func (s *Service) logEvent(eventType string, data map[string]interface{}) {
	data["component"] = "session"
	data["event_type"] = eventType
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info(eventType, fields...)
}

// rngFor derives a request's random source. With a configured seed the
// stream is reproducible per (seed, step count).
func (s *Service) rngFor(steps int) *rand.Rand {
	if s.cfg.Mutation.Seed != nil {
		return rand.New(rand.NewPCG(*s.cfg.Mutation.Seed, uint64(steps)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (s *Service) explorer(state viewport.State) *viewport.Explorer {
	return &viewport.Explorer{
		Width:      s.cfg.Viewport.Width,
		Height:     s.cfg.Viewport.Height,
		YStep:      s.cfg.Viewport.YStep,
		Typologies: s.cfg.Archive.Typologies,
		Axis:       s.cfg.YAxis(),
		ClampY:     s.cfg.Viewport.ClampY,
		State:      state,
	}
}

// blankTile is shared by all empty cells.
func (s *Service) blankTile() image.Image {
	return s.renderer.Blank()
}
