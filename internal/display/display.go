// Package display renders session state in the terminal: inline images via
// the Kitty graphics protocol and the workflow step indicator.
package display

import (
	"bytes"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/manash/olive/internal/image"
)

var ErrNoImage = errors.New("no image to display")

type Displayer struct {
	out io.Writer
}

func New(out io.Writer) *Displayer {
	return &Displayer{out: out}
}

// Show draws the image carried by a data URI. Non-PNG images are
// re-encoded since the protocol is driven in PNG mode.
func (d *Displayer) Show(uri string) error {
	if uri == "" {
		return ErrNoImage
	}
	mediaType, payload, err := image.ParseDataURI(uri)
	if err != nil {
		return err
	}

	enc := NewKittyEncoder(d.out)
	if mediaType == "image/png" {
		err = enc.EncodeBase64(payload)
	} else {
		var data []byte
		if data, _, err = image.DecodeDataURI(uri); err != nil {
			return err
		}
		if data, err = toPNG(data); err != nil {
			return err
		}
		err = enc.Encode(data)
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

// ShowBytes draws raw image bytes such as a downloaded thumbnail.
func (d *Displayer) ShowBytes(data []byte) error {
	if len(data) == 0 {
		return ErrNoImage
	}
	data, err := toPNG(data)
	if err != nil {
		return err
	}
	if err := NewKittyEncoder(d.out).Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(d.out)
	return nil
}

func toPNG(data []byte) ([]byte, error) {
	img, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
