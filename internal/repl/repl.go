// Package repl is the interactive wizard. It owns one studio service for
// its lifetime and maps line commands onto workflow operations.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/manash/olive/internal/display"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/studio"
	"github.com/manash/olive/internal/wizard"
	"github.com/manash/olive/pkg/models"
)

type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	studio    *studio.Service
	displayer *display.Displayer
	saver     *image.Saver
	exportDir string
	commands  map[string]Command
	running   bool

	// results holds the last shopping search so "pick" can refer to it by
	// number. Search results are not part of the persisted session.
	results []models.ShopItem
	// previous maps a refine target to the description it replaced.
	previous map[string]string
}

type Config struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Studio *studio.Service
	// Displayer is nil when the terminal cannot show images.
	Displayer *display.Displayer
	Saver     *image.Saver
	// ExportDir receives exported documents. Empty means the working
	// directory.
	ExportDir string
}

func New(cfg *Config) *REPL {
	saver := cfg.Saver
	if saver == nil {
		saver = image.NewSaver()
	}
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		studio:    cfg.Studio,
		displayer: cfg.Displayer,
		saver:     saver,
		exportDir: cfg.ExportDir,
		commands:  make(map[string]Command),
		previous:  make(map[string]string),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "olive interior design studio")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
	r.printSteps()
}

func (r *REPL) printPrompt() {
	sess := r.studio.Snapshot()
	if sess.RoomMode == models.RoomModeMulti {
		if room := sess.ActiveRoom(); room != nil {
			fmt.Fprintf(r.out, "olive [%d %s] (%s)> ", sess.Step, wizard.Label(sess.Step), room.Name)
			return
		}
	}
	fmt.Fprintf(r.out, "olive [%d %s]> ", sess.Step, wizard.Label(sess.Step))
}

func (r *REPL) printSteps() {
	sess := r.studio.Snapshot()
	fmt.Fprintln(r.out, display.StepIndicator(sess.Step, r.studio.MaxReached()))
}

// target returns the room the design commands act on: the active room in
// multi mode, "" in single mode.
func (r *REPL) target() (string, error) {
	sess := r.studio.Snapshot()
	if sess.RoomMode != models.RoomModeMulti {
		return "", nil
	}
	if sess.ActiveRoom() == nil {
		return "", fmt.Errorf("no active room - use 'room use <n>' first")
	}
	return sess.ActiveRoomID, nil
}

// show renders a data URI image when the terminal supports it.
func (r *REPL) show(uri string) {
	if r.displayer == nil || uri == "" {
		return
	}
	if err := r.displayer.Show(uri); err != nil {
		fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
	}
	fmt.Fprintln(r.out)
}

// showView renders whatever design is currently on screen, if any.
func (r *REPL) showView() {
	if view := r.studio.Display(); view.Result != nil {
		r.show(view.Result.ImageBase64)
	}
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
