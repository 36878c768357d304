package studio

import (
	"context"
	"fmt"

	"github.com/manash/olive/internal/designer"
	"github.com/manash/olive/pkg/models"
)

// GenerateVariations replaces the single-mode variation set with count
// alternatives of the current design. Count is clamped into [2, 3].
func (s *Service) GenerateVariations(ctx context.Context, count int) ([]models.DesignVariation, error) {
	return s.generateVariations(ctx, singleTarget, count)
}

func (s *Service) GenerateRoomVariations(ctx context.Context, roomID string, count int) ([]models.DesignVariation, error) {
	if roomID == "" {
		return nil, models.ErrRoomNotFound
	}
	return s.generateVariations(ctx, roomID, count)
}

func (s *Service) generateVariations(ctx context.Context, roomID string, count int) ([]models.DesignVariation, error) {
	sess, epoch := s.begin()
	if sess.StyleProfile == nil {
		return nil, models.ErrNoStyleProfile
	}
	result := sess.DesignResult
	if roomID != singleTarget {
		room, _ := sess.Room(roomID)
		if room == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
		}
		result = room.DesignResult
	}
	if result == nil {
		return nil, models.ErrNoDesignResult
	}

	var vars []models.DesignVariation
	err := s.call(OpVariations, func() (err error) {
		vars, err = s.designer.GenerateVariations(ctx, models.VariationRequest{
			Description:  result.Description,
			DallePrompt:  result.Prompt,
			StyleProfile: *sess.StyleProfile,
			Count:        designer.ClampVariations(count),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpVariations, func(sess *models.Session) error {
		if roomID == singleTarget {
			sess.Variations = append([]models.DesignVariation{}, vars...)
		} else {
			room, _ := sess.Room(roomID)
			if room == nil {
				return fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
			}
			room.Variations = append([]models.DesignVariation{}, vars...)
		}
		sess.SelectedVariationID = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// SelectVariation toggles the selection: choosing the selected id clears
// it, any other id replaces it. It returns the new selection.
func (s *Service) SelectVariation(ctx context.Context, id string) (string, error) {
	var selected string
	err := s.update(ctx, func(sess *models.Session) error {
		if sess.SelectedVariationID == id {
			sess.SelectedVariationID = ""
		} else {
			sess.SelectedVariationID = id
		}
		selected = sess.SelectedVariationID
		return nil
	})
	return selected, err
}

// View is the design currently on screen. Variation is set when a valid
// selected variation replaces the base result.
type View struct {
	RoomID    string
	Result    *models.DesignResult
	Variation *models.DesignVariation
}

// Display resolves what is shown for the active target: the selected
// variation when its id exists there, otherwise the base result. Result
// is nil when nothing has been generated.
func (s *Service) Display() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveView(s.sess)
}

func resolveView(sess models.Session) View {
	var (
		v    View
		base *models.DesignResult
		vars []models.DesignVariation
	)
	if sess.RoomMode == models.RoomModeMulti {
		room := sess.ActiveRoom()
		if room == nil {
			return v
		}
		v.RoomID = room.ID
		base, vars = room.DesignResult, room.Variations
	} else {
		base, vars = sess.DesignResult, sess.Variations
	}

	if variation := findVariation(vars, sess.SelectedVariationID); variation != nil {
		v.Variation = variation
		v.Result = &models.DesignResult{
			ImageBase64: variation.ImageBase64,
			Description: variation.Description,
			Prompt:      variation.DallePrompt,
		}
		return v
	}
	v.Result = base.Clone()
	return v
}

func findVariation(vars []models.DesignVariation, id string) *models.DesignVariation {
	if id == "" {
		return nil
	}
	for i := range vars {
		if vars[i].ID == id {
			v := vars[i]
			return &v
		}
	}
	return nil
}
