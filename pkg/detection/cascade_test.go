//go:build opencv

package detection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// findCascadePath looks for the cascade in common locations
func findCascadePath() string {
	paths := []string{
		"models/haarcascade_frontalface_default.xml",
		"../../models/haarcascade_frontalface_default.xml",
		filepath.Join(os.Getenv("HOME"), "models/haarcascade_frontalface_default.xml"),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func TestCascade_MissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CascadePath = "/nonexistent/cascade.xml"

	_, err := New(cfg, nil)
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestCascade_BlankFrame(t *testing.T) {
	path := findCascadePath()
	if path == "" {
		t.Skip("cascade not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.CascadePath = path
	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if boxes := d.Detect(frame.New(320, 240, frame.Gray)); len(boxes) != 0 {
		t.Errorf("blank frame produced %d boxes", len(boxes))
	}
	if boxes := d.Detect(frame.New(0, 0, frame.Gray)); len(boxes) != 0 {
		t.Errorf("empty frame produced %d boxes", len(boxes))
	}
}
