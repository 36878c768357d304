package studio

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/pkg/models"
)

// QuickRooms are the names offered for one-step room creation.
var QuickRooms = []string{"거실", "주방", "침실", "욕실"}

// AddUpload appends a reference image given as a data URI.
func (s *Service) AddUpload(ctx context.Context, uri string) error {
	if _, _, err := image.ParseDataURI(uri); err != nil {
		return err
	}
	return s.update(ctx, func(sess *models.Session) error {
		if len(sess.UploadedImages) >= models.MaxUploads {
			return fmt.Errorf("%w: max %d", models.ErrTooManyImages, models.MaxUploads)
		}
		sess.UploadedImages = append(sess.UploadedImages, uri)
		return nil
	})
}

// AddUploadFile downscales the image at path and adds it as an upload.
func (s *Service) AddUploadFile(ctx context.Context, path string) error {
	uri, err := image.LoadUpload(path)
	if err != nil {
		return err
	}
	return s.AddUpload(ctx, uri)
}

func (s *Service) RemoveUpload(ctx context.Context, index int) error {
	return s.update(ctx, func(sess *models.Session) error {
		if index < 0 || index >= len(sess.UploadedImages) {
			return fmt.Errorf("%w: upload %d", ErrInvalidIndex, index+1)
		}
		sess.UploadedImages = slices.Delete(sess.UploadedImages, index, index+1)
		return nil
	})
}

func (s *Service) SetStyleText(ctx context.Context, text string) error {
	return s.update(ctx, func(sess *models.Session) error {
		sess.StyleText = text
		return nil
	})
}

func (s *Service) SetDesignPrompt(ctx context.Context, prompt string) error {
	return s.update(ctx, func(sess *models.Session) error {
		sess.DesignPrompt = prompt
		return nil
	})
}

func (s *Service) SetRoomMode(ctx context.Context, mode models.RoomMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return s.update(ctx, func(sess *models.Session) error {
		sess.RoomMode = mode
		return nil
	})
}

func (s *Service) SetCustomerName(ctx context.Context, name string) error {
	return s.update(ctx, func(sess *models.Session) error {
		sess.CustomerName = name
		return nil
	})
}

// AddRoom appends a room. A blank name becomes "공간 N".
func (s *Service) AddRoom(ctx context.Context, name, prompt string) (models.RoomEntry, error) {
	var room models.RoomEntry
	err := s.update(ctx, func(sess *models.Session) error {
		name := strings.TrimSpace(name)
		if name == "" {
			name = batch.DefaultRoomName(len(sess.Rooms) + 1)
		}
		room = batch.NewRoom(name, prompt)
		sess.Rooms = append(sess.Rooms, room)
		return nil
	})
	return room.Clone(), err
}

// QuickAddRoom adds one of QuickRooms with an empty prompt. It reports
// false without changing anything when a room of that name exists.
func (s *Service) QuickAddRoom(ctx context.Context, name string) (bool, error) {
	if !slices.Contains(QuickRooms, name) {
		return false, fmt.Errorf("%w: %q", ErrUnknownRoom, name)
	}
	added := false
	err := s.update(ctx, func(sess *models.Session) error {
		for _, r := range sess.Rooms {
			if r.Name == name {
				return nil
			}
		}
		sess.Rooms = append(sess.Rooms, batch.NewRoom(name, ""))
		added = true
		return nil
	})
	return added, err
}

func (s *Service) RemoveRoom(ctx context.Context, id string) error {
	return s.update(ctx, func(sess *models.Session) error {
		_, idx := sess.Room(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, id)
		}
		sess.Rooms = slices.Delete(sess.Rooms, idx, idx+1)
		if sess.ActiveRoomID == id {
			sess.ActiveRoomID = ""
		}
		return nil
	})
}

// RoomPatch carries the room fields to change; nil leaves a field as is.
type RoomPatch struct {
	Name   *string
	Prompt *string
}

func (s *Service) UpdateRoom(ctx context.Context, id string, patch RoomPatch) error {
	return s.update(ctx, func(sess *models.Session) error {
		room, _ := sess.Room(id)
		if room == nil {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, id)
		}
		if patch.Name != nil {
			room.Name = *patch.Name
		}
		if patch.Prompt != nil {
			room.Prompt = *patch.Prompt
		}
		return nil
	})
}

func (s *Service) SetActiveRoom(ctx context.Context, id string) error {
	return s.update(ctx, func(sess *models.Session) error {
		if room, _ := sess.Room(id); room == nil {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, id)
		}
		sess.ActiveRoomID = id
		return nil
	})
}
