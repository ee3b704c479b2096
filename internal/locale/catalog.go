// Package locale resolves the core's message keys to host-translated strings.
package locale

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Catalog maps message keys to localized strings. Lookups are safe while
// another goroutine loads a replacement table.
type Catalog struct {
	strings atomic.Pointer[map[string]string]
}

// NewCatalog creates a catalog holding entries
func NewCatalog(entries map[string]string) *Catalog {
	c := &Catalog{}
	c.Replace(entries)
	return c
}

// LoadFile reads a YAML mapping of key to string
func LoadFile(path string) (*Catalog, error) {
	c := NewCatalog(nil)
	if err := c.Load(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Load replaces the catalog's contents with the YAML file at path
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	c.Replace(entries)
	return nil
}

// Replace swaps in a new table
func (c *Catalog) Replace(entries map[string]string) {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	c.strings.Store(&m)
}

// Lookup returns the string for key. ok is false when the catalog has no
// entry, in which case the core should use its built-in text; an entry
// mapped to "" is returned as ("", true).
func (c *Catalog) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := (*c.strings.Load())[key]
	return s, ok
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(*c.strings.Load())
}
