package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/manash/olive/internal/metrics"
	"github.com/manash/olive/pkg/models"
)

const (
	DefaultBatchSize = 2
	DefaultStagger   = 2000 * time.Millisecond
)

// GenerateFunc produces a fresh design for one room.
type GenerateFunc func(ctx context.Context, room models.RoomEntry) (*models.DesignResult, error)

type Options struct {
	BatchSize int
	Stagger   time.Duration
	Clock     Clock
	Logger    *slog.Logger
	// OnProgress receives a snapshot of the rooms after every batch and
	// after every successful retry.
	OnProgress func(rooms []models.RoomEntry)
}

// Outcome is the result of one multi-room run. Failed names rooms left
// without a design, in input order. Kept names rooms whose generation
// failed but which still hold the design from an earlier run; they are not
// retried. Errors holds the last error per room id for both.
type Outcome struct {
	Rooms        []models.RoomEntry
	Failed       []string
	Kept         []string
	Errors       map[string]error
	ActiveRoomID string
	Duration     time.Duration
}

// Succeeded counts rooms that received a fresh design in this run.
func (o *Outcome) Succeeded() int {
	return len(o.Rooms) - len(o.Failed) - len(o.Kept)
}

type Runner struct {
	opts Options
}

func NewRunner(opts Options) *Runner {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts}
}

// Run generates every room in batches of BatchSize, staggering starts
// within a batch, then retries once, sequentially, each failed room that
// still has no design. Only
// precondition violations are returned as errors; per-room failures are
// reported in the Outcome.
func (r *Runner) Run(ctx context.Context, rooms []models.RoomEntry, generate GenerateFunc) (*Outcome, error) {
	if len(rooms) == 0 {
		return nil, models.ErrNoRooms
	}
	for _, room := range rooms {
		if strings.TrimSpace(room.Prompt) == "" {
			return nil, fmt.Errorf("%w: room %q", models.ErrEmptyPrompt, room.Name)
		}
	}

	start := time.Now()
	working := make([]models.RoomEntry, len(rooms))
	for i, room := range rooms {
		working[i] = room.Clone()
	}
	results := make([]*models.DesignResult, len(rooms))
	errs := make([]error, len(rooms))

	sched := &Scheduler{Workers: r.opts.BatchSize, Clock: r.opts.Clock}
	for lo := 0; lo < len(working); lo += r.opts.BatchSize {
		hi := min(lo+r.opts.BatchSize, len(working))
		tasks := make([]Task, 0, hi-lo)
		for i := lo; i < hi; i++ {
			tasks = append(tasks, Task{
				Delay: time.Duration(i-lo) * r.opts.Stagger,
				Run: func(ctx context.Context) {
					results[i], errs[i] = r.attempt(ctx, working[i], generate, "batch")
				},
			})
		}
		sched.Run(ctx, tasks)

		for i := lo; i < hi; i++ {
			if errs[i] == nil {
				install(&working[i], results[i])
			}
		}
		r.publish(working)
	}

	for i := range working {
		if errs[i] == nil || working[i].DesignResult != nil {
			continue
		}
		results[i], errs[i] = r.attempt(ctx, working[i], generate, "retry")
		if errs[i] == nil {
			install(&working[i], results[i])
			r.publish(working)
		}
	}

	out := &Outcome{
		Rooms:    working,
		Errors:   make(map[string]error),
		Duration: time.Since(start),
	}
	for i, room := range working {
		if errs[i] != nil {
			out.Errors[room.ID] = errs[i]
			if room.DesignResult == nil {
				out.Failed = append(out.Failed, room.Name)
			} else {
				out.Kept = append(out.Kept, room.Name)
			}
		}
		if out.ActiveRoomID == "" && room.DesignResult != nil {
			out.ActiveRoomID = room.ID
		}
	}
	r.opts.Logger.Info("multi-room generation finished",
		"rooms", len(working), "failed", len(out.Failed), "duration", out.Duration)
	return out, nil
}

func (r *Runner) attempt(ctx context.Context, room models.RoomEntry, generate GenerateFunc, phase string) (*models.DesignResult, error) {
	res, err := generate(ctx, room)
	if err == nil && res == nil {
		err = errors.New("generator returned no result")
	}
	metrics.BatchRoom(phase, err)
	if err != nil {
		r.opts.Logger.Warn("room generation failed", "phase", phase, "room", room.Name, "error", err)
		return nil, err
	}
	r.opts.Logger.Debug("room generated", "phase", phase, "room", room.Name)
	return res, nil
}

// install replaces the room's result. A fresh generation starts a new
// conversation and invalidates derived variations.
func install(room *models.RoomEntry, res *models.DesignResult) {
	room.DesignResult = res
	room.DesignMessages = []models.DesignMessage{}
	room.Variations = []models.DesignVariation{}
}

func (r *Runner) publish(rooms []models.RoomEntry) {
	if r.opts.OnProgress == nil {
		return
	}
	snapshot := make([]models.RoomEntry, len(rooms))
	for i, room := range rooms {
		snapshot[i] = room.Clone()
	}
	r.opts.OnProgress(snapshot)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func (o *Outcome) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Successful: %d/%d rooms\n", o.Succeeded(), len(o.Rooms))
	fmt.Fprintf(w, "  Duration: %s\n", o.Duration.Round(time.Millisecond))
	if len(o.Failed) == 0 && len(o.Kept) == 0 {
		return
	}
	if len(o.Failed) > 0 {
		fmt.Fprintf(w, "  Failed: %s\n", strings.Join(o.Failed, ", "))
	}
	if len(o.Kept) > 0 {
		fmt.Fprintf(w, "  Kept previous design: %s\n", strings.Join(o.Kept, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Errors:")
	for _, room := range o.Rooms {
		if err, ok := o.Errors[room.ID]; ok {
			fmt.Fprintf(w, "  %s (%q): %v\n", room.Name, truncate(room.Prompt, 40), err)
		}
	}
}
