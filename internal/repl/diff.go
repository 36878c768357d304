package repl

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/manash/olive/pkg/models"
)

// DiffCommand compares the design description before and after the last
// refinement
type DiffCommand struct{}

func (c *DiffCommand) Name() string        { return "diff" }
func (c *DiffCommand) Aliases() []string   { return []string{"d"} }
func (c *DiffCommand) Description() string { return "Show how the last refinement changed the description" }
func (c *DiffCommand) Usage() string       { return "diff" }

func (c *DiffCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	roomID, err := r.target()
	if err != nil {
		return err
	}
	before, after, ok := refinementPair(r.studio.Snapshot(), roomID, r.previous[roomID])
	if !ok {
		return fmt.Errorf("nothing to compare - use 'refine' first")
	}
	if before == after {
		fmt.Fprintln(r.out, "No changes")
		return nil
	}
	fmt.Fprintln(r.out, describeDiff(before, after))
	return nil
}

// refinementPair picks the last refined description and the one it
// replaced. The two most recent assistant replies are used when both
// exist; otherwise fallback stands in for the design that was refined.
func refinementPair(sess models.Session, roomID, fallback string) (before, after string, ok bool) {
	msgs := sess.DesignMessages
	if roomID != "" {
		room, _ := sess.Room(roomID)
		if room == nil {
			return "", "", false
		}
		msgs = room.DesignMessages
	}

	var replies []string
	for _, m := range msgs {
		if m.Role == models.RoleAssistant {
			replies = append(replies, m.Content)
		}
	}
	switch {
	case len(replies) >= 2:
		return replies[len(replies)-2], replies[len(replies)-1], true
	case len(replies) == 1 && fallback != "":
		return fallback, replies[0], true
	}
	return "", "", false
}

// describeDiff renders a word-level diff with [-removed-] and {+added+}
// markers so it reads the same with or without color.
func describeDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		}
	}
	return b.String()
}
