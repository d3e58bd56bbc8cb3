// Package locality holds the set of localities the engine serves.
package locality

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyRegistry is returned when a registry file lists no localities.
var ErrEmptyRegistry = errors.New("locality registry is empty")

// Entry is one locality. Coordinates are optional.
type Entry struct {
	Name      string   `yaml:"name" json:"name"`
	Latitude  *float64 `yaml:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty" json:"longitude,omitempty"`
	// Aliases are alternative spellings accepted by Lookup.
	Aliases []string `yaml:"aliases,omitempty" json:"-"`
}

type document struct {
	Region     string  `yaml:"region"`
	Localities []Entry `yaml:"localities"`
}

// Registry resolves user-supplied names to canonical entries.
type Registry struct {
	region  string
	entries []Entry
	byKey   map[string]int
}

// New builds a registry from entries. Duplicate names keep the first entry;
// entries without a name are skipped.
func New(region string, entries []Entry) *Registry {
	r := &Registry{region: region, byKey: make(map[string]int, len(entries))}
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		if _, dup := r.byKey[key(e.Name)]; dup {
			continue
		}
		idx := len(r.entries)
		r.entries = append(r.entries, e)
		r.byKey[key(e.Name)] = idx
		for _, a := range e.Aliases {
			if _, taken := r.byKey[key(a)]; !taken && strings.TrimSpace(a) != "" {
				r.byKey[key(a)] = idx
			}
		}
	}
	return r
}

// Parse decodes a YAML registry document:
//
//	region: Cavite, Philippines
//	localities:
//	  - name: Imus
//	    latitude: 14.4297
//	    longitude: 120.9367
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode locality registry: %w", err)
	}
	r := New(doc.Region, doc.Localities)
	if r.Len() == 0 {
		return nil, ErrEmptyRegistry
	}
	return r, nil
}

// Load reads a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locality registry: %w", err)
	}
	return Parse(data)
}

// Lookup returns the canonical entry for name, matching case-insensitively and
// ignoring surrounding whitespace.
func (r *Registry) Lookup(name string) (Entry, bool) {
	idx, ok := r.byKey[key(name)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// Region is the administrative region the localities belong to, used to
// qualify boundary searches. May be empty.
func (r *Registry) Region() string { return r.region }

// Len returns the number of localities.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns the localities sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the canonical names sorted.
func (r *Registry) Names() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
