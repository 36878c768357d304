package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/manash/olive/pkg/models"
)

const singleTarget = ""

// refineTarget is what one refinement call modifies: the single-mode
// design or one room.
type refineTarget struct {
	roomID  string
	request models.DesignRequest
}

// Refine modifies the single-mode design with feedback. The user message is
// kept even when the call fails.
func (s *Service) Refine(ctx context.Context, feedback string) (*models.DesignResult, error) {
	return s.refine(ctx, singleTarget, feedback)
}

// RefineRoom modifies one room's design. Different rooms may be refined
// concurrently.
func (s *Service) RefineRoom(ctx context.Context, roomID, feedback string) (*models.DesignResult, error) {
	if roomID == "" {
		return nil, models.ErrRoomNotFound
	}
	return s.refine(ctx, roomID, feedback)
}

func (s *Service) refine(ctx context.Context, roomID, feedback string) (*models.DesignResult, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, models.ErrEmptyFeedback
	}

	target, epoch, err := s.startRefine(ctx, roomID, feedback)
	if err != nil {
		return nil, err
	}
	defer s.finishRefine(roomID, epoch)

	var res *models.DesignResult
	err = s.call(OpRefine, func() (err error) {
		res, err = s.designer.GenerateDesign(ctx, target.request)
		return err
	})
	if err != nil {
		return nil, err
	}

	reply := models.DesignMessage{
		Role:        models.RoleAssistant,
		Content:     res.Description,
		ImageBase64: res.ImageBase64,
	}
	err = s.commit(ctx, epoch, OpRefine, func(sess *models.Session) error {
		if roomID == singleTarget {
			sess.DesignResult = res.Clone()
			sess.DesignMessages = append(sess.DesignMessages, reply)
			sess.Variations = []models.DesignVariation{}
		} else {
			room, _ := sess.Room(roomID)
			if room == nil {
				return fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
			}
			room.DesignResult = res.Clone()
			room.DesignMessages = append(room.DesignMessages, reply)
			room.Variations = []models.DesignVariation{}
		}
		sess.SelectedVariationID = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// startRefine checks preconditions, claims the target and records the
// user message in one step. The request carries every earlier user message
// followed by the new feedback.
func (s *Service) startRefine(ctx context.Context, roomID, feedback string) (refineTarget, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.StyleProfile == nil {
		return refineTarget{}, 0, models.ErrNoStyleProfile
	}

	var (
		result   *models.DesignResult
		messages []models.DesignMessage
		prompt   string
	)
	if roomID == singleTarget {
		result, messages, prompt = s.sess.DesignResult, s.sess.DesignMessages, s.sess.DesignPrompt
	} else {
		room, _ := s.sess.Room(roomID)
		if room == nil {
			return refineTarget{}, 0, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
		}
		result, messages, prompt = room.DesignResult, room.DesignMessages, room.Prompt
	}
	if result == nil {
		return refineTarget{}, 0, models.ErrNoDesignResult
	}
	if _, busy := s.refining[roomID]; busy {
		return refineTarget{}, 0, ErrRefineInFlight
	}

	refinements := make([]string, 0, len(messages)+1)
	for _, m := range messages {
		if m.Role == models.RoleUser {
			refinements = append(refinements, m.Content)
		}
	}
	refinements = append(refinements, feedback)

	target := refineTarget{
		roomID: roomID,
		request: models.DesignRequest{
			Prompt:              prompt,
			StyleProfile:        *s.sess.StyleProfile.Clone(),
			Refinements:         refinements,
			PreviousDescription: result.Description,
		},
	}

	msg := models.DesignMessage{Role: models.RoleUser, Content: feedback}
	err := s.apply(ctx, func(sess *models.Session) error {
		if roomID == singleTarget {
			sess.DesignMessages = append(sess.DesignMessages, msg)
			return nil
		}
		room, _ := sess.Room(roomID)
		room.DesignMessages = append(room.DesignMessages, msg)
		return nil
	})
	if err != nil {
		return refineTarget{}, 0, err
	}

	s.refining[roomID] = s.epoch
	return target, s.epoch, nil
}

// finishRefine releases the target unless a reset already released it and
// a newer refinement claimed it.
func (s *Service) finishRefine(roomID string, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if claimed, ok := s.refining[roomID]; ok && claimed == epoch {
		delete(s.refining, roomID)
	}
}
