package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/security"
	"github.com/manash/olive/internal/session"
	"github.com/manash/olive/internal/studio"
	"github.com/manash/olive/pkg/models"
)

var (
	flagImages    []string
	flagStyleText string
	flagOut       string
)

func newRoomsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms <file>",
		Short: "Render every room listed in a file",
		Long: `Rooms analyzes the reference images, then renders one design per room
listed in <file> and saves each render as a PNG.

A .txt file holds one room per line, optionally prefixed with "name:".
A .json file holds an array of {"name": ..., "prompt": ...} objects.

Examples:
  olive rooms rooms.txt --image ref.jpg
  olive rooms rooms.json --image a.jpg --image b.png --style-text "warm wood" --out renders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRooms(cmd, args[0], app)
		},
	}
	cmd.Flags().StringArrayVarP(&flagImages, "image", "i", nil, "reference image (repeatable, up to 5)")
	cmd.Flags().StringVar(&flagStyleText, "style-text", "", "extra style description")
	cmd.Flags().StringVarP(&flagOut, "out", "o", "", "directory for the renders")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runRooms(cmd *cobra.Command, path string, app *App) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if flagOut != "" {
		if err := security.ValidateSavePath(flagOut); err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
	}

	rooms, err := batch.ParseFile(path)
	if err != nil {
		return err
	}

	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.Close()

	// Headless runs never touch the interactive session.
	svc := studio.New(ctx, studio.Options{
		Designer: e.designer,
		Store:    session.NewStore(session.NewMemoryKV(), e.logger),
		Batch:    batchOptions(e),
		Logger:   e.logger,
	})

	for _, img := range flagImages {
		if err := svc.AddUploadFile(ctx, img); err != nil {
			return fmt.Errorf("%s: %w", img, err)
		}
	}
	if flagStyleText != "" {
		if err := svc.SetStyleText(ctx, flagStyleText); err != nil {
			return err
		}
	}

	fmt.Fprintf(app.Out, "Analyzing style from %d image(s)...\n", len(flagImages))
	profile, err := svc.AnalyzeStyle(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Style: %s\n", profile.Style)

	if err := svc.SetRoomMode(ctx, models.RoomModeMulti); err != nil {
		return err
	}
	for _, room := range rooms {
		if _, err := svc.AddRoom(ctx, room.Name, room.Prompt); err != nil {
			return err
		}
	}

	fmt.Fprintf(app.Out, "Rendering %d room(s)...\n", len(rooms))
	outcome, err := svc.GenerateRooms(ctx)
	if err != nil {
		return err
	}

	saver := app.NewSaver()
	for i, room := range outcome.Rooms {
		if room.DesignResult == nil || room.DesignResult.ImageBase64 == "" {
			continue
		}
		name := fmt.Sprintf("%02d_%s.png", i+1, security.SanitizeFilename(room.Name))
		out := filepath.Join(flagOut, name)
		if err := saver.SaveDataURI(room.DesignResult.ImageBase64, out); err != nil {
			fmt.Fprintf(app.Err, "Warning: %s: %v\n", room.Name, err)
			continue
		}
		fmt.Fprintf(app.Out, "Saved: %s\n", out)
	}

	outcome.PrintSummary(app.Out)
	if outcome.Succeeded() == 0 {
		return fmt.Errorf("no room was rendered")
	}
	return nil
}
