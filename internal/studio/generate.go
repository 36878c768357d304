package studio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/wizard"
	"github.com/manash/olive/pkg/models"
)

// AnalyzeStyle derives a style profile from the uploads and style text and
// moves to step 2. Existing designs are kept.
func (s *Service) AnalyzeStyle(ctx context.Context) (*models.StyleProfile, error) {
	sess, epoch := s.begin()
	if len(sess.UploadedImages) == 0 {
		return nil, models.ErrNoImages
	}

	var profile *models.StyleProfile
	err := s.call(OpAnalyzeStyle, func() (err error) {
		profile, err = s.designer.AnalyzeStyle(ctx, models.StyleRequest{
			Images: sess.UploadedImages,
			Text:   sess.StyleText,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpAnalyzeStyle, func(sess *models.Session) error {
		sess.StyleProfile = profile.Clone()
		sess.Step = wizard.StepPrompt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GenerateDesign renders the single-room design prompt. A new design
// starts a new conversation and drops variations and the selection.
func (s *Service) GenerateDesign(ctx context.Context) (*models.DesignResult, error) {
	sess, epoch := s.begin()
	if sess.StyleProfile == nil {
		return nil, models.ErrNoStyleProfile
	}
	if strings.TrimSpace(sess.DesignPrompt) == "" {
		return nil, models.ErrEmptyPrompt
	}

	var res *models.DesignResult
	err := s.call(OpGenerateDesign, func() (err error) {
		res, err = s.designer.GenerateDesign(ctx, models.DesignRequest{
			Prompt:       sess.DesignPrompt,
			StyleProfile: *sess.StyleProfile,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpGenerateDesign, func(sess *models.Session) error {
		sess.DesignResult = res.Clone()
		sess.DesignMessages = []models.DesignMessage{}
		sess.Variations = []models.DesignVariation{}
		sess.SelectedVariationID = ""
		sess.Step = wizard.StepResult
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GenerateRooms renders every room. Rooms are published to the session as
// each batch settles, so a reader sees results arrive progressively. Fresh
// results are merged into the current rooms by id; rooms added, edited or
// removed while the run was in flight keep those edits. Room failures are
// reported in the outcome; the first room with a result becomes active and
// the session moves to step 3.
func (s *Service) GenerateRooms(ctx context.Context) (*batch.Outcome, error) {
	sess, epoch := s.begin()
	if sess.StyleProfile == nil {
		return nil, models.ErrNoStyleProfile
	}
	if len(sess.Rooms) == 0 {
		return nil, models.ErrNoRooms
	}
	for _, room := range sess.Rooms {
		if strings.TrimSpace(room.Prompt) == "" {
			return nil, fmt.Errorf("%w: room %q", models.ErrEmptyPrompt, room.Name)
		}
	}
	profile := *sess.StyleProfile

	// rooms with a new design not yet merged into the session
	var pendingMu sync.Mutex
	pending := make(map[string]bool)
	take := func(id string) bool {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		ok := pending[id]
		delete(pending, id)
		return ok
	}

	opts := s.batchOpts
	opts.OnProgress = func(rooms []models.RoomEntry) {
		err := s.commit(ctx, epoch, OpGenerateRooms, func(sess *models.Session) error {
			mergeRooms(sess.Rooms, rooms, take)
			return nil
		})
		if err != nil {
			s.logger.Debug("progress not published", "error", err)
		}
	}
	runner := batch.NewRunner(opts)

	var out *batch.Outcome
	err := s.call(OpGenerateRooms, func() (err error) {
		out, err = runner.Run(ctx, sess.Rooms, func(ctx context.Context, room models.RoomEntry) (*models.DesignResult, error) {
			res, err := s.designer.GenerateDesign(ctx, models.DesignRequest{
				Prompt:       room.Prompt,
				StyleProfile: profile,
			})
			if err == nil && res != nil {
				pendingMu.Lock()
				pending[room.ID] = true
				pendingMu.Unlock()
			}
			return res, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpGenerateRooms, func(sess *models.Session) error {
		mergeRooms(sess.Rooms, out.Rooms, take)
		sess.ActiveRoomID = ""
		if hasRoom(sess.Rooms, out.ActiveRoomID) {
			sess.ActiveRoomID = out.ActiveRoomID
		} else {
			for _, r := range sess.Rooms {
				if r.DesignResult != nil {
					sess.ActiveRoomID = r.ID
					break
				}
			}
		}
		sess.Step = wizard.StepResult
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mergeRooms copies designs from generated into current, matching rooms by
// id, for each room that take reports as newly generated. A new design
// starts a new conversation and drops the room's variations.
func mergeRooms(current, generated []models.RoomEntry, take func(id string) bool) {
	byID := make(map[string]*models.RoomEntry, len(generated))
	for i := range generated {
		byID[generated[i].ID] = &generated[i]
	}
	for i := range current {
		g, ok := byID[current[i].ID]
		if !ok || g.DesignResult == nil || !take(g.ID) {
			continue
		}
		current[i].DesignResult = g.DesignResult.Clone()
		current[i].DesignMessages = []models.DesignMessage{}
		current[i].Variations = []models.DesignVariation{}
	}
}

func hasRoom(rooms []models.RoomEntry, id string) bool {
	if id == "" {
		return false
	}
	for _, r := range rooms {
		if r.ID == id {
			return true
		}
	}
	return false
}
