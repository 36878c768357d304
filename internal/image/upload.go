package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	stdimage "image"
	"image/jpeg"
	"os"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxUploadBytes = 5 * 1024 * 1024
	MaxDimension   = 1568
	JPEGQuality    = 85
)

var ErrUploadTooLarge = errors.New("image exceeds 5MB")

// LoadUpload reads a reference photo, scales its longest side down to
// MaxDimension and returns it as a JPEG data URI.
func LoadUpload(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxUploadBytes {
		return "", fmt.Errorf("%w: %s", ErrUploadTooLarge, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return EncodeUpload(data)
}

// EncodeUpload is LoadUpload for bytes already in memory.
func EncodeUpload(data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", ErrUploadTooLarge
	}
	src, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	dst := Downscale(src, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return EncodeDataURI("image/jpeg", base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// Downscale returns src unchanged when both sides fit in maxDim, otherwise
// a copy scaled to keep the aspect ratio.
func Downscale(src stdimage.Image, maxDim int) stdimage.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	ratio := min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := max(1, int(float64(w)*ratio))
	nh := max(1, int(float64(h)*ratio))

	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
