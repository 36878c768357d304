// Package studio owns one design session and runs every workflow
// operation against it: inputs, collaborator calls, navigation and export.
//
// Every mutation clones the current session, applies a reducer to the
// clone, installs it and persists it while holding one mutex, so readers
// never observe a half-applied change. Collaborator calls run outside the
// lock and commit their results only if the session has not been reset in
// the meantime.
package studio

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/metrics"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/internal/session"
	"github.com/manash/olive/internal/wizard"
	"github.com/manash/olive/pkg/models"
)

// Operation names used in errors, logs and metrics.
const (
	OpAnalyzeStyle     = "style analysis"
	OpGenerateDesign   = "design generation"
	OpGenerateRooms    = "multi-room generation"
	OpRefine           = "design refinement"
	OpVariations       = "variation generation"
	OpExtractMaterials = "material extraction"
	OpSearch           = "shopping search"
)

type Options struct {
	Designer provider.Designer
	// Search is optional; without it Search returns ErrSearchDisabled.
	Search provider.ShopSearcher
	Store  *session.Store
	// Batch configures multi-room generation. OnProgress is managed by
	// the service and ignored here.
	Batch  batch.Options
	Logger *slog.Logger
	Now    func() time.Time
}

type Service struct {
	designer  provider.Designer
	search    provider.ShopSearcher
	store     *session.Store
	batchOpts batch.Options
	logger    *slog.Logger
	now       func() time.Time

	busy atomic.Int32

	mu       sync.Mutex
	sess     models.Session
	epoch    uint64
	refining map[string]uint64 // target -> epoch of the claim
}

// New loads the persisted session and returns a service owning it.
func New(ctx context.Context, opts Options) *Service {
	s := &Service{
		designer:  opts.Designer,
		search:    opts.Search,
		store:     opts.Store,
		batchOpts: opts.Batch,
		logger:    opts.Logger,
		now:       opts.Now,
		refining:  make(map[string]uint64),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.store == nil {
		s.store = session.NewStore(session.NewMemoryKV(), s.logger)
	}
	s.batchOpts.Logger = s.logger
	s.sess = s.store.Load(ctx)
	return s
}

// Snapshot returns a deep copy of the current session.
func (s *Service) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone()
}

// Busy reports whether a collaborator call is in flight.
func (s *Service) Busy() bool {
	return s.busy.Load() > 0
}

func (s *Service) MaxReached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wizard.MaxReached(s.sess)
}

func (s *Service) Navigate(ctx context.Context, step int) error {
	return s.update(ctx, func(sess *models.Session) error {
		next, err := wizard.Navigate(*sess, step)
		if err != nil {
			return err
		}
		*sess = next
		return nil
	})
}

// Reset discards the session and its stored snapshot. Responses to calls
// started before the reset are dropped when they arrive, and their refine
// targets are free to claim again.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.sess = models.DefaultSession()
	s.refining = make(map[string]uint64)
	s.store.Clear(context.WithoutCancel(ctx))
	s.logger.Info("session reset", "epoch", s.epoch)
}

// update applies fn to a clone of the session and installs the result.
// Nothing changes when fn fails.
func (s *Service) update(ctx context.Context, fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, fn)
}

// apply requires s.mu.
func (s *Service) apply(ctx context.Context, fn func(*models.Session) error) error {
	next := s.sess.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.sess = next
	s.store.Save(context.WithoutCancel(ctx), next)
	return nil
}

// begin returns a copy of the session and the epoch it belongs to.
func (s *Service) begin() (models.Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone(), s.epoch
}

// commit installs a collaborator result unless the session was reset
// after the call began.
func (s *Service) commit(ctx context.Context, epoch uint64, op string, fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		metrics.ObserveStale(op)
		s.logger.Info("dropping stale response", "op", op, "started", epoch, "current", s.epoch)
		return ErrStaleResponse
	}
	return s.apply(ctx, fn)
}

// call runs one collaborator request with the busy flag raised.
func (s *Service) call(op string, fn func() error) error {
	s.busy.Add(1)
	defer s.busy.Add(-1)

	start := time.Now()
	err := fn()
	metrics.ObserveCall(op, err, time.Since(start))
	if err != nil {
		s.logger.Warn("collaborator call failed", "op", op, "error", err)
		return &CallError{Op: op, Err: err}
	}
	s.logger.Debug("collaborator call finished", "op", op, "duration", time.Since(start))
	return nil
}
