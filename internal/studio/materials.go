package studio

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/manash/olive/internal/wizard"
	"github.com/manash/olive/pkg/models"
)

// ExtractMaterials lists the materials of the shown single-mode design,
// the selected variation when one is valid, and moves to step 4.
func (s *Service) ExtractMaterials(ctx context.Context) ([]models.Material, error) {
	sess, epoch := s.begin()
	if sess.DesignResult == nil {
		return nil, models.ErrNoDesignResult
	}
	req := materialRequest(sess.DesignResult, sess.Variations, sess.SelectedVariationID)

	var mats []models.Material
	err := s.call(OpExtractMaterials, func() (err error) {
		mats, err = s.designer.ExtractMaterials(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpExtractMaterials, func(sess *models.Session) error {
		sess.Materials = append([]models.Material{}, mats...)
		sess.Step = wizard.StepMaterials
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mats, nil
}

// ExtractRoomMaterials lists the materials of one room's shown design and
// stores them on the room.
func (s *Service) ExtractRoomMaterials(ctx context.Context, roomID string) ([]models.Material, error) {
	sess, epoch := s.begin()
	room, _ := sess.Room(roomID)
	if room == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	if room.DesignResult == nil {
		return nil, models.ErrNoDesignResult
	}
	req := materialRequest(room.DesignResult, room.Variations, sess.SelectedVariationID)

	var mats []models.Material
	err := s.call(OpExtractMaterials, func() (err error) {
		mats, err = s.designer.ExtractMaterials(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, epoch, OpExtractMaterials, func(sess *models.Session) error {
		room, _ := sess.Room(roomID)
		if room == nil {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
		}
		room.Materials = append([]models.Material{}, mats...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mats, nil
}

// ExtractOutcome reports an all-rooms extraction. Failed names rooms whose
// extraction failed; Errors is keyed by room id.
type ExtractOutcome struct {
	Materials []models.Material
	Failed    []string
	Errors    map[string]error
}

// ExtractAllRoomMaterials extracts every room with a base result
// concurrently. Each room that succeeds keeps its own list; the session
// list is their union in room order, deduplicated by name. The session
// moves to step 4 unless every room failed.
func (s *Service) ExtractAllRoomMaterials(ctx context.Context) (*ExtractOutcome, error) {
	sess, epoch := s.begin()
	var rooms []models.RoomEntry
	for _, r := range sess.Rooms {
		if r.DesignResult != nil {
			rooms = append(rooms, r)
		}
	}
	if len(rooms) == 0 {
		return nil, models.ErrNoDesignResult
	}

	results := make([][]models.Material, len(rooms))
	errs := make([]error, len(rooms))
	err := s.call(OpExtractMaterials, func() error {
		g, gctx := errgroup.WithContext(ctx)
		for i, room := range rooms {
			g.Go(func() error {
				// Errors stay per room so one failure does not cancel the rest.
				results[i], errs[i] = s.designer.ExtractMaterials(gctx, models.MaterialRequest{
					ImageBase64: room.DesignResult.ImageBase64,
					Description: room.DesignResult.Description,
				})
				return nil
			})
		}
		g.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		if failed == len(rooms) {
			return errors.Join(errs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &ExtractOutcome{Errors: make(map[string]error)}
	seen := make(map[string]bool)
	for i, room := range rooms {
		if errs[i] != nil {
			out.Failed = append(out.Failed, room.Name)
			out.Errors[room.ID] = errs[i]
			s.logger.Warn("room material extraction failed", "room", room.Name, "error", errs[i])
			continue
		}
		for _, m := range results[i] {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out.Materials = append(out.Materials, m)
		}
	}

	err = s.commit(ctx, epoch, OpExtractMaterials, func(sess *models.Session) error {
		for i, r := range rooms {
			if errs[i] != nil {
				continue
			}
			if room, _ := sess.Room(r.ID); room != nil {
				room.Materials = append([]models.Material{}, results[i]...)
			}
		}
		sess.Materials = append([]models.Material{}, out.Materials...)
		sess.Step = wizard.StepMaterials
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func materialRequest(base *models.DesignResult, vars []models.DesignVariation, selected string) models.MaterialRequest {
	if v := findVariation(vars, selected); v != nil {
		return models.MaterialRequest{ImageBase64: v.ImageBase64, Description: v.Description}
	}
	return models.MaterialRequest{ImageBase64: base.ImageBase64, Description: base.Description}
}
