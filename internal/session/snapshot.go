package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/manash/olive/internal/metrics"
	"github.com/manash/olive/pkg/models"
)

// StorageKey is the single slot holding the whole session snapshot.
const StorageKey = "olive_design_state"

type SaveOutcome int

const (
	SaveFull SaveOutcome = iota
	SaveDegraded
	SaveDropped
)

func (o SaveOutcome) String() string {
	switch o {
	case SaveFull:
		return "full"
	case SaveDegraded:
		return "degraded"
	default:
		return "dropped"
	}
}

// Store persists a Session snapshot under StorageKey. Neither Load nor Save
// ever report an error to the caller.
type Store struct {
	kv     KV
	logger *slog.Logger
}

func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the stored session merged over the defaults. A missing or
// unreadable snapshot yields the default session.
func (s *Store) Load(ctx context.Context) models.Session {
	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session load failed", "error", err)
		}
		return models.DefaultSession()
	}

	sess := models.DefaultSession()
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("session snapshot unreadable, starting fresh", "error", err, "bytes", len(data))
		return models.DefaultSession()
	}
	sess.Normalize()
	return sess
}

// Save writes the full snapshot and falls back to the degraded one when the
// full write fails. If both fail the save is dropped.
func (s *Store) Save(ctx context.Context, sess models.Session) SaveOutcome {
	outcome := s.save(ctx, sess)
	metrics.StoreSave(outcome.String())
	return outcome
}

func (s *Store) save(ctx context.Context, sess models.Session) SaveOutcome {
	data, err := Marshal(sess)
	if err == nil {
		if err = s.kv.Set(ctx, StorageKey, data); err == nil {
			return SaveFull
		}
	}
	s.logger.Info("full session save failed, writing degraded snapshot", "error", err, "bytes", len(data))

	lite, err := Marshal(Degrade(sess))
	if err == nil {
		if err = s.kv.Set(ctx, StorageKey, lite); err == nil {
			return SaveDegraded
		}
	}
	s.logger.Warn("session save dropped", "error", err, "bytes", len(lite))
	return SaveDropped
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, StorageKey); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("session clear failed", "error", err)
	}
}

func (s *Store) Close() error {
	return s.kv.Close()
}

// Marshal encodes a normalized copy of sess.
func Marshal(sess models.Session) ([]byte, error) {
	c := sess.Clone()
	c.Normalize()
	return json.Marshal(c)
}

// Degrade strips every image payload from the session: uploads, results,
// chat messages and variations, in single mode and in every room. Text is
// kept.
func Degrade(sess models.Session) models.Session {
	c := sess.Clone()
	c.UploadedImages = []string{}
	stripResult(c.DesignResult)
	stripMessages(c.DesignMessages)
	stripVariations(c.Variations)
	for i := range c.Rooms {
		stripResult(c.Rooms[i].DesignResult)
		stripMessages(c.Rooms[i].DesignMessages)
		stripVariations(c.Rooms[i].Variations)
	}
	return c
}

func stripResult(r *models.DesignResult) {
	if r != nil {
		r.ImageBase64 = ""
	}
}

func stripMessages(msgs []models.DesignMessage) {
	for i := range msgs {
		msgs[i].ImageBase64 = ""
	}
}

func stripVariations(vars []models.DesignVariation) {
	for i := range vars {
		vars[i].ImageBase64 = ""
	}
}
