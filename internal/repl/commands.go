package repl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/security"
	"github.com/manash/olive/internal/studio"
	"github.com/manash/olive/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&ImageCommand{},
		&AnalyzeCommand{},
		&PromptCommand{},
		&ModeCommand{},
		&RoomCommand{},
		&GenerateCommand{},
		&RefineCommand{},
		&VariationsCommand{},
		&SelectCommand{},
		&ShowCommand{},
		&DiffCommand{},
		&SaveCommand{},
		&MaterialsCommand{},
		&SearchCommand{},
		&PickCommand{},
		&ThumbCommand{},
		&RowCommand{},
		&CustomerCommand{},
		&ExportCommand{},
		&StepCommand{},
		&StatusCommand{},
		&ResetCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// ImageCommand manages the reference images for style analysis
type ImageCommand struct{}

func (c *ImageCommand) Name() string        { return "image" }
func (c *ImageCommand) Aliases() []string   { return []string{"img"} }
func (c *ImageCommand) Description() string { return "Add, remove or list reference images" }
func (c *ImageCommand) Usage() string       { return "image <add <path>|rm <n>|list>" }

func (c *ImageCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.list(r)
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: image add <path>")
		}
		for _, path := range args[1:] {
			if err := r.studio.AddUploadFile(ctx, path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(r.out, "Added: %s\n", path)
		}
		return nil
	case "rm", "remove":
		n, err := parseIndex(args[1:])
		if err != nil {
			return err
		}
		if err := r.studio.RemoveUpload(ctx, n); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Removed image %d\n", n+1)
		return nil
	case "list", "ls":
		return c.list(r)
	default:
		return fmt.Errorf("unknown image command: %s", args[0])
	}
}

func (c *ImageCommand) list(r *REPL) error {
	sess := r.studio.Snapshot()
	if len(sess.UploadedImages) == 0 {
		fmt.Fprintln(r.out, "No reference images")
		return nil
	}
	for i, uri := range sess.UploadedImages {
		mediaType, payload, _ := image.ParseDataURI(uri)
		fmt.Fprintf(r.out, "  [%d] %s, %d bytes encoded\n", i+1, mediaType, len(payload))
	}
	fmt.Fprintf(r.out, "%d/%d images\n", len(sess.UploadedImages), models.MaxUploads)
	return nil
}

// AnalyzeCommand runs style analysis on the reference images
type AnalyzeCommand struct{}

func (c *AnalyzeCommand) Name() string        { return "analyze" }
func (c *AnalyzeCommand) Aliases() []string   { return []string{"style", "a"} }
func (c *AnalyzeCommand) Description() string { return "Analyze the style of the reference images" }
func (c *AnalyzeCommand) Usage() string       { return "analyze [style notes]" }

func (c *AnalyzeCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) > 0 {
		if err := r.studio.SetStyleText(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
	}

	fmt.Fprintln(r.out, "Analyzing style...")
	profile, err := r.studio.AnalyzeStyle(ctx)
	if err != nil {
		return err
	}
	printProfile(r, profile)
	r.printSteps()
	return nil
}

func printProfile(r *REPL, p *models.StyleProfile) {
	fmt.Fprintf(r.out, "Style: %s\n", p.Style)
	if p.Mood != "" {
		fmt.Fprintf(r.out, "Mood: %s\n", p.Mood)
	}
	if len(p.Colors) > 0 {
		fmt.Fprintf(r.out, "Colors: %s\n", strings.Join(p.Colors, ", "))
	}
	if len(p.Materials) > 0 {
		fmt.Fprintf(r.out, "Materials: %s\n", strings.Join(p.Materials, ", "))
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(r.out, "Keywords: %s\n", strings.Join(p.Keywords, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(r.out, "Summary: %s\n", p.Summary)
	}
}

// PromptCommand sets the single-room design description
type PromptCommand struct{}

func (c *PromptCommand) Name() string        { return "prompt" }
func (c *PromptCommand) Aliases() []string   { return []string{"p"} }
func (c *PromptCommand) Description() string { return "Get or set the space description" }
func (c *PromptCommand) Usage() string       { return "prompt [description]" }

func (c *PromptCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		prompt := r.studio.Snapshot().DesignPrompt
		if prompt == "" {
			prompt = "(empty)"
		}
		fmt.Fprintf(r.out, "Prompt: %s\n", prompt)
		return nil
	}
	if err := r.studio.SetDesignPrompt(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Prompt set")
	return nil
}

// ModeCommand switches between single and multi-room mode
type ModeCommand struct{}

func (c *ModeCommand) Name() string        { return "mode" }
func (c *ModeCommand) Aliases() []string   { return nil }
func (c *ModeCommand) Description() string { return "Get or set the room mode" }
func (c *ModeCommand) Usage() string       { return "mode [single|multi]" }

func (c *ModeCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Mode: %s\n", r.studio.Snapshot().RoomMode)
		return nil
	}
	mode := models.RoomMode(strings.ToLower(args[0]))
	if err := r.studio.SetRoomMode(ctx, mode); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Mode set to: %s\n", mode)
	return nil
}

// RoomCommand manages the rooms of a multi-room session
type RoomCommand struct{}

func (c *RoomCommand) Name() string        { return "room" }
func (c *RoomCommand) Aliases() []string   { return []string{"rooms"} }
func (c *RoomCommand) Description() string { return "Manage rooms (list, add, quick, rm, use, prompt, rename)" }
func (c *RoomCommand) Usage() string {
	return "room <list|add <name> [prompt]|quick <name>|rm <n>|use <n>|prompt <n> <text>|rename <n> <name>>"
}

func (c *RoomCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.list(r)
	}

	subArgs := args[1:]
	switch strings.ToLower(args[0]) {
	case "list", "ls":
		return c.list(r)
	case "add":
		name, prompt := "", ""
		if len(subArgs) > 0 {
			name = subArgs[0]
			prompt = strings.Join(subArgs[1:], " ")
		}
		room, err := r.studio.AddRoom(ctx, name, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Added room: %s\n", room.Name)
		return nil
	case "quick":
		if len(subArgs) == 0 {
			return fmt.Errorf("usage: room quick <%s>", strings.Join(studio.QuickRooms, "|"))
		}
		added, err := r.studio.QuickAddRoom(ctx, subArgs[0])
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(r.out, "Room %s already exists\n", subArgs[0])
			return nil
		}
		fmt.Fprintf(r.out, "Added room: %s\n", subArgs[0])
		return nil
	case "rm", "remove":
		room, err := c.room(r, subArgs)
		if err != nil {
			return err
		}
		if err := r.studio.RemoveRoom(ctx, room.ID); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Removed room: %s\n", room.Name)
		return nil
	case "use":
		room, err := c.room(r, subArgs)
		if err != nil {
			return err
		}
		if err := r.studio.SetActiveRoom(ctx, room.ID); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Active room: %s\n", room.Name)
		r.showView()
		return nil
	case "prompt":
		if len(subArgs) < 2 {
			return fmt.Errorf("usage: room prompt <n> <text>")
		}
		room, err := c.room(r, subArgs[:1])
		if err != nil {
			return err
		}
		prompt := strings.Join(subArgs[1:], " ")
		return r.studio.UpdateRoom(ctx, room.ID, studio.RoomPatch{Prompt: &prompt})
	case "rename":
		if len(subArgs) < 2 {
			return fmt.Errorf("usage: room rename <n> <name>")
		}
		room, err := c.room(r, subArgs[:1])
		if err != nil {
			return err
		}
		name := strings.Join(subArgs[1:], " ")
		return r.studio.UpdateRoom(ctx, room.ID, studio.RoomPatch{Name: &name})
	default:
		return fmt.Errorf("unknown room command: %s", args[0])
	}
}

func (c *RoomCommand) room(r *REPL, args []string) (models.RoomEntry, error) {
	n, err := parseIndex(args)
	if err != nil {
		return models.RoomEntry{}, err
	}
	rooms := r.studio.Snapshot().Rooms
	if n >= len(rooms) {
		return models.RoomEntry{}, fmt.Errorf("%w: room %d", studio.ErrInvalidIndex, n+1)
	}
	return rooms[n], nil
}

func (c *RoomCommand) list(r *REPL) error {
	sess := r.studio.Snapshot()
	if len(sess.Rooms) == 0 {
		fmt.Fprintln(r.out, "No rooms")
		return nil
	}
	for i, room := range sess.Rooms {
		marker := "  "
		if room.ID == sess.ActiveRoomID {
			marker = "> "
		}
		status := "pending"
		if room.DesignResult != nil {
			status = "designed"
		}
		if len(room.Materials) > 0 {
			status = fmt.Sprintf("%d materials", len(room.Materials))
		}
		fmt.Fprintf(r.out, "%s[%d] %-8s %-12s %q\n", marker, i+1, room.Name, status, truncate(room.Prompt, 40))
	}
	return nil
}

// GenerateCommand renders the design, or every room in multi mode
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate the design (all rooms in multi mode)" }
func (c *GenerateCommand) Usage() string       { return "generate [description]" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if r.studio.Snapshot().RoomMode == models.RoomModeMulti {
		return c.rooms(ctx, r)
	}

	if len(args) > 0 {
		if err := r.studio.SetDesignPrompt(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
	}

	fmt.Fprintln(r.out, "Generating design...")
	res, err := r.studio.GenerateDesign(ctx)
	if err != nil {
		return err
	}
	r.show(res.ImageBase64)
	fmt.Fprintln(r.out, res.Description)
	r.printSteps()
	return nil
}

func (c *GenerateCommand) rooms(ctx context.Context, r *REPL) error {
	n := len(r.studio.Snapshot().Rooms)
	fmt.Fprintf(r.out, "Generating %d rooms...\n", n)
	out, err := r.studio.GenerateRooms(ctx)
	if err != nil {
		return err
	}
	out.PrintSummary(r.out)
	r.showView()
	r.printSteps()
	return nil
}

// RefineCommand sends feedback on the current design
type RefineCommand struct{}

func (c *RefineCommand) Name() string        { return "refine" }
func (c *RefineCommand) Aliases() []string   { return []string{"r"} }
func (c *RefineCommand) Description() string { return "Refine the current design with feedback" }
func (c *RefineCommand) Usage() string       { return "refine <feedback>" }

func (c *RefineCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	roomID, err := r.target()
	if err != nil {
		return err
	}

	before := baseDescription(r.studio.Snapshot(), roomID)
	feedback := strings.Join(args, " ")
	fmt.Fprintln(r.out, "Refining design...")
	var res *models.DesignResult
	if roomID == "" {
		res, err = r.studio.Refine(ctx, feedback)
	} else {
		res, err = r.studio.RefineRoom(ctx, roomID, feedback)
	}
	if err != nil {
		return err
	}
	r.previous[roomID] = before
	r.show(res.ImageBase64)
	fmt.Fprintln(r.out, res.Description)
	return nil
}

func baseDescription(sess models.Session, roomID string) string {
	res := sess.DesignResult
	if roomID != "" {
		if room, _ := sess.Room(roomID); room != nil {
			res = room.DesignResult
		}
	}
	if res == nil {
		return ""
	}
	return res.Description
}

// VariationsCommand generates alternative takes on the current design
type VariationsCommand struct{}

func (c *VariationsCommand) Name() string        { return "variations" }
func (c *VariationsCommand) Aliases() []string   { return []string{"var", "v"} }
func (c *VariationsCommand) Description() string { return "Generate 2-3 variations of the current design" }
func (c *VariationsCommand) Usage() string       { return "variations [count]" }

func (c *VariationsCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	count := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		count = n
	}
	roomID, err := r.target()
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, "Generating variations...")
	var vars []models.DesignVariation
	if roomID == "" {
		vars, err = r.studio.GenerateVariations(ctx, count)
	} else {
		vars, err = r.studio.GenerateRoomVariations(ctx, roomID, count)
	}
	if err != nil {
		return err
	}
	printVariations(r, vars, "")
	return nil
}

func printVariations(r *REPL, vars []models.DesignVariation, selected string) {
	for i, v := range vars {
		marker := "  "
		if v.ID == selected {
			marker = "> "
		}
		fmt.Fprintf(r.out, "%s[%d] %s: %s\n", marker, i+1, v.Label, truncate(v.Description, 60))
	}
}

// SelectCommand toggles a variation as the displayed design
type SelectCommand struct{}

func (c *SelectCommand) Name() string        { return "select" }
func (c *SelectCommand) Aliases() []string   { return []string{"sel"} }
func (c *SelectCommand) Description() string { return "Select a variation, or deselect it when chosen again" }
func (c *SelectCommand) Usage() string       { return "select <n>" }

func (c *SelectCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	n, err := parseIndex(args)
	if err != nil {
		return err
	}
	vars := targetVariations(r.studio.Snapshot())
	if n >= len(vars) {
		return fmt.Errorf("%w: variation %d", studio.ErrInvalidIndex, n+1)
	}

	selected, err := r.studio.SelectVariation(ctx, vars[n].ID)
	if err != nil {
		return err
	}
	if selected == "" {
		fmt.Fprintln(r.out, "Showing the original design")
	} else {
		fmt.Fprintf(r.out, "Selected: %s\n", vars[n].Label)
	}
	r.showView()
	return nil
}

func targetVariations(sess models.Session) []models.DesignVariation {
	if sess.RoomMode == models.RoomModeMulti {
		if room := sess.ActiveRoom(); room != nil {
			return room.Variations
		}
		return nil
	}
	return sess.Variations
}

// ShowCommand displays the current design
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display", "view"} }
func (c *ShowCommand) Description() string { return "Display the current design" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	view := r.studio.Display()
	if view.Result == nil {
		return fmt.Errorf("no design yet - use 'generate' first")
	}
	r.show(view.Result.ImageBase64)
	if view.Variation != nil {
		fmt.Fprintf(r.out, "Variation: %s\n", view.Variation.Label)
	}
	fmt.Fprintln(r.out, view.Result.Description)

	sess := r.studio.Snapshot()
	if vars := targetVariations(sess); len(vars) > 0 {
		fmt.Fprintln(r.out, "\nVariations:")
		printVariations(r, vars, sess.SelectedVariationID)
	}
	return nil
}

// SaveCommand writes the current design image to a file
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"s"} }
func (c *SaveCommand) Description() string { return "Save the current design image to a file" }
func (c *SaveCommand) Usage() string       { return "save [filename]" }

func (c *SaveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	view := r.studio.Display()
	if view.Result == nil || view.Result.ImageBase64 == "" {
		return fmt.Errorf("no current image to save")
	}

	var destPath string
	if len(args) > 0 {
		destPath = args[0]
		if err := security.ValidateSavePath(destPath); err != nil {
			return fmt.Errorf("invalid save path: %w", err)
		}
	} else {
		destPath = image.GenerateFilenameWithTime("design", 0, models.FormatPNG, time.Now())
	}

	if err := r.saver.SaveDataURI(view.Result.ImageBase64, destPath); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	fmt.Fprintf(r.out, "Saved: %s\n", destPath)
	return nil
}

// StepCommand shows the step indicator or moves to a reached step
type StepCommand struct{}

func (c *StepCommand) Name() string        { return "step" }
func (c *StepCommand) Aliases() []string   { return []string{"go"} }
func (c *StepCommand) Description() string { return "Show the workflow steps or go to a reached step" }
func (c *StepCommand) Usage() string       { return "step [1-5]" }

func (c *StepCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step: %s", args[0])
		}
		if err := r.studio.Navigate(ctx, n); err != nil {
			return err
		}
	}
	r.printSteps()
	return nil
}

// StatusCommand summarizes the session
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Aliases() []string   { return []string{"st"} }
func (c *StatusCommand) Description() string { return "Summarize the current session" }
func (c *StatusCommand) Usage() string       { return "status" }

func (c *StatusCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	sess := r.studio.Snapshot()
	r.printSteps()
	fmt.Fprintf(r.out, "Mode: %s\n", sess.RoomMode)
	fmt.Fprintf(r.out, "Reference images: %d/%d\n", len(sess.UploadedImages), models.MaxUploads)
	if sess.StyleProfile != nil {
		fmt.Fprintf(r.out, "Style: %s\n", sess.StyleProfile.Style)
	}
	if sess.RoomMode == models.RoomModeMulti {
		fmt.Fprintf(r.out, "Rooms: %d\n", len(sess.Rooms))
	} else if sess.DesignPrompt != "" {
		fmt.Fprintf(r.out, "Prompt: %q\n", truncate(sess.DesignPrompt, 60))
	}
	fmt.Fprintf(r.out, "Materials: %d\n", len(sess.Materials))
	fmt.Fprintf(r.out, "Estimate rows: %d\n", len(sess.EstimateRows))
	if sess.CustomerName != "" {
		fmt.Fprintf(r.out, "Customer: %s\n", sess.CustomerName)
	}
	return nil
}

// ResetCommand discards the session
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Aliases() []string   { return []string{"new"} }
func (c *ResetCommand) Description() string { return "Discard the session and start over" }
func (c *ResetCommand) Usage() string       { return "reset" }

func (c *ResetCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	r.studio.Reset(ctx)
	r.results = nil
	clear(r.previous)
	fmt.Fprintln(r.out, "Session reset")
	r.printSteps()
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-22s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "                        Usage: %s\n", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

// parseIndex reads a 1-based index argument and returns it 0-based.
func parseIndex(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number: %s", args[0])
	}
	return n - 1, nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
