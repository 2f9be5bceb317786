package emotions

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSet_CanonicalOrder(t *testing.T) {
	s := DefaultSet()

	if s.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", s.Len())
	}

	want := map[Label]string{
		Annoyed:   "Annoyed",
		Happiness: "Happiness",
		Sad:       "Sad",
		Upset:     "Upset",
	}
	for l, name := range want {
		if got := s.Name(l); got != name {
			t.Errorf("Name(%d): got %q, want %q", l, got, name)
		}
	}
}

func TestSet_Parse(t *testing.T) {
	s := DefaultSet()

	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{"Happiness", Happiness, false},
		{"happiness", Happiness, false},
		{"  SAD ", Sad, false},
		{"Upset", Upset, false},
		{"Bored", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := s.Parse(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownLabel) {
					t.Errorf("Parse(%q): expected ErrUnknownLabel, got %v", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q): got %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewSet_Errors(t *testing.T) {
	if _, err := NewSet(); !errors.Is(err, ErrEmptySet) {
		t.Errorf("empty set: got %v, want ErrEmptySet", err)
	}
	if _, err := NewSet("Happy", "happy"); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("duplicate: got %v, want ErrDuplicateLabel", err)
	}
	if _, err := NewSet("Happy", " "); err == nil {
		t.Error("blank name should be rejected")
	}
}

func TestSet_NameOutOfRange(t *testing.T) {
	s := DefaultSet()
	if s.Valid(Label(4)) || s.Valid(Label(-1)) {
		t.Error("out-of-range labels should be invalid")
	}
	if got := s.Name(Label(42)); got != "unknown" {
		t.Errorf("Name(42): got %q, want unknown", got)
	}
}

func TestNewSample_Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{-0.2, 0},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		if got := NewSample(Sad, tc.in).Confidence; got != tc.want {
			t.Errorf("NewSample(%v): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadCatalog_CoversDefaultSet(t *testing.T) {
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	if missing := c.Covers(DefaultSet()); len(missing) != 0 {
		t.Errorf("catalog missing entries: %v", missing)
	}

	e, err := c.Get("annoyed")
	if err != nil {
		t.Fatalf("Get(annoyed): %v", err)
	}
	if e.Description == "" || len(e.Respond) == 0 {
		t.Errorf("Annoyed entry incomplete: %+v", e)
	}
	if e.Color != "#ffc107" {
		t.Errorf("Annoyed color: got %q", e.Color)
	}
}

func TestCatalog_LookupFallsBackToName(t *testing.T) {
	c, err := ParseCatalog([]byte(`[{"name":"Calm","description":"at ease"}]`))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	s, _ := NewSet("Calm", "Tense")

	if e := c.Lookup(s, 0); e.Description != "at ease" {
		t.Errorf("Lookup(Calm): got %+v", e)
	}
	if e := c.Lookup(s, 1); e.Name != "Tense" || e.Description != "" {
		t.Errorf("Lookup(Tense): got %+v", e)
	}
	if _, err := c.Get("Tense"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(Tense): got %v, want ErrNotFound", err)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte(`[{"name":"Sad","description":"down"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if c.Count() != 1 || c.List()[0] != "Sad" {
		t.Errorf("unexpected catalog: %v", c.List())
	}

	if _, err := LoadCatalogFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
