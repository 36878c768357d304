package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes PNG data using the Kitty graphics protocol.
type KittyEncoder struct {
	out io.Writer
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

func (e *KittyEncoder) Encode(png []byte) error {
	if len(png) == 0 {
		return nil
	}
	return e.EncodeBase64(base64.StdEncoding.EncodeToString(png))
}

// EncodeBase64 transmits an already base64-encoded PNG, as carried by the
// data URIs of generated designs.
func (e *KittyEncoder) EncodeBase64(encoded string) error {
	if encoded == "" {
		return nil
	}
	chunks := splitIntoChunks(encoded, chunkSize)
	if len(chunks) == 1 {
		_, err := fmt.Fprintf(e.out, "%sa=T,f=100,q=2;%s%s", escapeStart, encoded, escapeEnd)
		return err
	}

	for i, chunk := range chunks {
		params := "m=1"
		switch i {
		case 0:
			params = "a=T,f=100,q=2,m=1"
		case len(chunks) - 1:
			params = "m=0"
		}
		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

func splitIntoChunks(s string, size int) []string {
	var chunks []string
	for len(s) > 0 {
		n := min(size, len(s))
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}
