package emotions

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

//go:embed data/catalog.json
var embeddedCatalog embed.FS

// Entry is the presentation metadata for one label.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Respond     []string `json:"respond"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
}

// Catalog maps label names to presentation metadata.
// It is loaded once at startup and read-only afterwards.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// LoadCatalog loads the built-in catalog.
func LoadCatalog() (*Catalog, error) {
	data, err := embeddedCatalog.ReadFile("data/catalog.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalogFile loads a catalog from a JSON file on disk.
// This allows deployments to localize descriptions without rebuilding.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a JSON array of entries.
func ParseCatalog(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("catalog entry without name")
		}
		c.entries[strings.ToLower(e.Name)] = e
	}
	return c, nil
}

// Get retrieves an entry by label name.
func (c *Catalog) Get(name string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[strings.ToLower(name)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Lookup returns the entry for a label of set s.
// Labels without an entry get a bare entry carrying just the name.
func (c *Catalog) Lookup(s *Set, l Label) Entry {
	name := s.Name(l)
	if e, err := c.Get(name); err == nil {
		return e
	}
	return Entry{Name: name}
}

// Covers reports which names of s have no catalog entry.
func (c *Catalog) Covers(s *Set) (missing []string) {
	for _, name := range s.Names() {
		if _, err := c.Get(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// List returns all entry names, sorted alphabetically.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of entries.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
