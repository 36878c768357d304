package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_Disabled(t *testing.T) {
	fl, err := New(Options{Debug: false, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if fl.Enabled {
		t.Error("Enabled = true, want false")
	}
	fl.Logger.Info("dropped")
	if err := fl.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	fl, err := New(Options{Debug: true, Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fl.Logger.Info("store save", "tier", "full")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "logs", "olive.log")
	if fl.Path != want {
		t.Errorf("Path = %s, want %s", fl.Path, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"tier":"full"`) {
		t.Errorf("log = %s, want tier attribute", data)
	}
}
