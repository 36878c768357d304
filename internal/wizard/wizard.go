// Package wizard implements the five-step workflow gate. Reachability is
// derived from the data a session holds rather than stored.
package wizard

import (
	"errors"
	"fmt"

	"github.com/manash/olive/pkg/models"
)

const (
	StepStyle     = 1
	StepPrompt    = 2
	StepResult    = 3
	StepMaterials = 4
	StepEstimate  = 5
)

var (
	ErrInvalidStep = errors.New("step must be between 1 and 5")
	ErrStepLocked  = errors.New("step not reached yet")
)

var labels = map[int]string{
	StepStyle:     "스타일 분석",
	StepPrompt:    "공간 설명",
	StepResult:    "디자인 결과",
	StepMaterials: "자재 목록",
	StepEstimate:  "견적서",
}

func Label(step int) string {
	return labels[step]
}

func Steps() []int {
	return []int{StepStyle, StepPrompt, StepResult, StepMaterials, StepEstimate}
}

// MaxReached returns the highest step the session's data unlocks.
func MaxReached(s models.Session) int {
	if len(s.EstimateRows) > 0 {
		return StepEstimate
	}
	if len(s.Materials) > 0 {
		return StepEstimate
	}
	for _, r := range s.Rooms {
		if len(r.Materials) > 0 {
			return StepEstimate
		}
	}
	if s.DesignResult != nil {
		return StepMaterials
	}
	for _, r := range s.Rooms {
		if r.DesignResult != nil {
			return StepMaterials
		}
	}
	if s.StyleProfile != nil {
		return StepResult
	}
	return StepStyle
}

// Navigate jumps to step k. Going back to step 2 or earlier discards the
// active refinement conversation; results, materials and estimate rows stay.
func Navigate(s models.Session, k int) (models.Session, error) {
	if k < StepStyle || k > StepEstimate {
		return s, fmt.Errorf("%w: got %d", ErrInvalidStep, k)
	}
	if reachable := MaxReached(s); k > reachable {
		return s, fmt.Errorf("%w: step %d (%s), reachable up to %d", ErrStepLocked, k, Label(k), reachable)
	}
	s = s.Clone()
	s.Step = k
	if k <= StepPrompt {
		s.DesignMessages = []models.DesignMessage{}
		if s.RoomMode == models.RoomModeMulti {
			if r := s.ActiveRoom(); r != nil {
				r.DesignMessages = []models.DesignMessage{}
			}
		}
	}
	return s, nil
}
