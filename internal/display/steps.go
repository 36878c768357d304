package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/manash/olive/internal/wizard"
)

var (
	currentStepStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("106")) // olive

	reachableStepStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250"))

	lockedStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Faint(true)

	stepSeparator = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render(" › ")
)

type StepState int

const (
	StepLocked StepState = iota
	StepReachable
	StepCurrent
)

func StateOf(step, current, maxReached int) StepState {
	switch {
	case step == current:
		return StepCurrent
	case step <= maxReached:
		return StepReachable
	default:
		return StepLocked
	}
}

// StepIndicator renders the five workflow steps on one line, e.g.
// "1 스타일 분석 › 2 공간 설명 › ...", styled by state.
func StepIndicator(current, maxReached int) string {
	parts := make([]string, 0, len(wizard.Steps()))
	for _, step := range wizard.Steps() {
		label := fmt.Sprintf("%d %s", step, wizard.Label(step))
		switch StateOf(step, current, maxReached) {
		case StepCurrent:
			parts = append(parts, currentStepStyle.Render("["+label+"]"))
		case StepReachable:
			parts = append(parts, reachableStepStyle.Render(label))
		default:
			parts = append(parts, lockedStepStyle.Render(label))
		}
	}
	return strings.Join(parts, stepSeparator)
}
