package display

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestKittyEncoder_Encode_Empty(t *testing.T) {
	var buf bytes.Buffer
	enc := NewKittyEncoder(&buf)

	if err := enc.Encode([]byte{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enc.EncodeBase64(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestKittyEncoder_Encode_Small(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("small test data")
	if err := NewKittyEncoder(&buf).Encode(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "\x1b_G") || !strings.HasSuffix(output, "\x1b\\") {
		t.Error("output should be wrapped in escape sequences")
	}
	for _, p := range []string{"a=T", "f=100", "q=2"} {
		if !strings.Contains(output, p) {
			t.Errorf("output should contain %s", p)
		}
	}
	if strings.Contains(output, "m=") {
		t.Error("single chunk should not use continuation flag")
	}
	if !strings.Contains(output, base64.StdEncoding.EncodeToString(data)) {
		t.Error("output should contain base64 encoded data")
	}
}

func TestKittyEncoder_EncodeBase64_Chunked(t *testing.T) {
	var buf bytes.Buffer
	encoded := strings.Repeat("A", chunkSize*2+10)
	if err := NewKittyEncoder(&buf).EncodeBase64(encoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if got := strings.Count(output, "\x1b_G"); got != 3 {
		t.Errorf("chunks = %d, want 3", got)
	}
	if !strings.Contains(output, "a=T,f=100,q=2,m=1;") {
		t.Error("first chunk should carry transmit params and m=1")
	}
	if strings.Count(output, "\x1b_Gm=1;") != 1 {
		t.Error("middle chunk should carry m=1 only")
	}
	if !strings.Contains(output, "\x1b_Gm=0;") {
		t.Error("last chunk should carry m=0")
	}
}

func TestKittyEncoder_ExactChunkSize(t *testing.T) {
	var buf bytes.Buffer
	if err := NewKittyEncoder(&buf).EncodeBase64(strings.Repeat("B", chunkSize)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(buf.String(), "\x1b_G") != 1 {
		t.Error("payload of exactly chunkSize should be a single chunk")
	}
}

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		input string
		size  int
		want  []string
	}{
		{"", 3, nil},
		{"abc", 3, []string{"abc"}},
		{"abcdefg", 3, []string{"abc", "def", "g"}},
		{"ab", 5, []string{"ab"}},
	}
	for _, tt := range tests {
		got := splitIntoChunks(tt.input, tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("splitIntoChunks(%q, %d) = %v, want %v", tt.input, tt.size, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
			}
		}
	}
}

type errorWriter struct{}

func (errorWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestKittyEncoder_WriteError(t *testing.T) {
	if err := NewKittyEncoder(errorWriter{}).Encode([]byte("data")); err == nil {
		t.Error("expected write error")
	}
	if err := NewKittyEncoder(errorWriter{}).EncodeBase64(strings.Repeat("C", chunkSize+1)); err == nil {
		t.Error("expected write error for chunked output")
	}
}
