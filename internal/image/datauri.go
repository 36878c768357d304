package image

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
)

var ErrInvalidDataURI = errors.New("invalid image data URI")

var dataURIPattern = regexp.MustCompile(`^data:(image/\w+);base64,(.+)$`)

// ParseDataURI splits an image data URI into its media type and base64
// payload.
func ParseDataURI(uri string) (mediaType, payload string, err error) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", ErrInvalidDataURI
	}
	return m[1], m[2], nil
}

func EncodeDataURI(mediaType, payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, payload)
}

// DecodeDataURI returns the raw bytes behind an image data URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	mediaType, payload, err := ParseDataURI(uri)
	if err != nil {
		return nil, "", err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}
	return data, mediaType, nil
}
