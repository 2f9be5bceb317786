package detection

import (
	"errors"
	"reflect"
	"testing"

	"github.com/teslashibe/go-affect/pkg/frame"
)

func TestFaceBox_Rect(t *testing.T) {
	b := FaceBox{X: 10, Y: 20, W: 30, H: 40}
	r := b.Rect()
	if r.Min.X != 10 || r.Min.Y != 20 || r.Max.X != 40 || r.Max.Y != 60 {
		t.Errorf("Rect: got %v", r)
	}
	if b.Area() != 1200 {
		t.Errorf("Area: got %d, want 1200", b.Area())
	}
	if got := FromRect(r); got != b {
		t.Errorf("FromRect: got %+v, want %+v", got, b)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		boxes []FaceBox
		want  []FaceBox
	}{
		{
			name:  "inside frame unchanged",
			boxes: []FaceBox{{X: 10, Y: 10, W: 20, H: 20}},
			want:  []FaceBox{{X: 10, Y: 10, W: 20, H: 20}},
		},
		{
			name:  "clamped at right and bottom",
			boxes: []FaceBox{{X: 90, Y: 50, W: 20, H: 20}},
			want:  []FaceBox{{X: 90, Y: 50, W: 10, H: 10}},
		},
		{
			name:  "clamped at negative origin",
			boxes: []FaceBox{{X: -5, Y: -5, W: 20, H: 20}},
			want:  []FaceBox{{X: 0, Y: 0, W: 15, H: 15}},
		},
		{
			name:  "fully outside discarded",
			boxes: []FaceBox{{X: 200, Y: 200, W: 10, H: 10}},
			want:  []FaceBox{},
		},
		{
			name:  "zero and negative size discarded",
			boxes: []FaceBox{{X: 1, Y: 1, W: 0, H: 5}, {X: 1, Y: 1, W: 5, H: -1}},
			want:  []FaceBox{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.boxes, 100, 60)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Sanitize: got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"mock", func(c *Config) { c.Backend = BackendMock }, false},
		{"unknown backend", func(c *Config) { c.Backend = "haar" }, true},
		{"missing cascade", func(c *Config) { c.CascadePath = "" }, true},
		{"yunet missing model", func(c *Config) { c.Backend = BackendYuNet; c.ModelPath = "" }, true},
		{"scale factor 1", func(c *Config) { c.ScaleFactor = 1 }, true},
		{"negative neighbors", func(c *Config) { c.MinNeighbors = -1 }, true},
		{"max below min", func(c *Config) { c.MinSize = 50; c.MaxSize = 40 }, true},
		{"threshold above 1", func(c *Config) { c.ConfidenceThresh = 1.5 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNew_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	d, err := LoaderFor(cfg, nil)()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if _, ok := d.(*Mock); !ok {
		t.Errorf("expected *Mock, got %T", d)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScaleFactor = 0.5
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestMock_Detect(t *testing.T) {
	box := FaceBox{X: 1, Y: 2, W: 3, H: 4}
	m := NewMock(box)

	gray := frame.New(10, 10, frame.Gray)
	gray.Seq = 7

	got := m.Detect(gray)
	if len(got) != 1 || got[0] != box {
		t.Fatalf("Detect: got %+v", got)
	}
	if got := m.Detect(frame.New(0, 0, frame.Gray)); len(got) != 0 {
		t.Errorf("empty frame should yield no boxes, got %+v", got)
	}

	if m.Calls() != 2 {
		t.Errorf("Calls: got %d, want 2", m.Calls())
	}
	if seqs := m.Seqs(); len(seqs) != 2 || seqs[0] != 7 {
		t.Errorf("Seqs: got %v", seqs)
	}

	m.SetBoxes()
	if got := m.Detect(gray); len(got) != 0 {
		t.Errorf("after SetBoxes(): got %+v", got)
	}
}
