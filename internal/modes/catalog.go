// Package modes holds the fixed catalog of shooting mode presets and
// resolves mode ids to the exposure overrides they stand for.
package modes

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

// ErrNotFound reports a mode id the catalog does not declare.
var ErrNotFound = errors.New("modes: mode not found")

// ManualID names the identity mode: always present, first in the
// catalog, and selecting it changes no settings.
const ManualID = "manual"

//go:embed catalog.yaml
var catalogYAML []byte

// Mode is one preset: a stable id, display strings, and the partial
// settings override selecting it applies.
type Mode struct {
	ID          string
	Label       string
	Description string
	Tips        []string
	Override    exposure.Override
}

func (m Mode) clone() Mode {
	m.Override = m.Override.Clone()
	m.Tips = append([]string(nil), m.Tips...)
	return m
}

// Catalog is the fixed, ordered preset registry. It never changes
// after construction, so lookups need no locking.
type Catalog struct {
	order []string
	modes map[string]Mode
}

type catalogFile struct {
	Presets []presetSpec `yaml:"presets"`
}

type presetSpec struct {
	ID          string            `yaml:"id"`
	Label       string            `yaml:"label"`
	Description string            `yaml:"description"`
	Overrides   map[string]string `yaml:"overrides"`
	Tips        []string          `yaml:"tips"`
}

// NewCatalog parses the embedded preset file. The data is fixed at
// build time, so an error here means the build itself is broken.
func NewCatalog() (*Catalog, error) {
	return newCatalogFrom(catalogYAML)
}

func newCatalogFrom(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("modes: parsing catalog: %w", err)
	}
	if len(file.Presets) == 0 {
		return nil, errors.New("modes: catalog declares no presets")
	}

	c := &Catalog{modes: make(map[string]Mode, len(file.Presets))}
	for _, p := range file.Presets {
		if p.ID == "" {
			return nil, errors.New("modes: catalog preset without id")
		}
		if _, dup := c.modes[p.ID]; dup {
			return nil, fmt.Errorf("modes: duplicate preset id %q", p.ID)
		}
		o, err := overrideFrom(p.Overrides)
		if err != nil {
			return nil, fmt.Errorf("modes: preset %q: %w", p.ID, err)
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("modes: preset %q: %w", p.ID, err)
		}
		c.order = append(c.order, p.ID)
		c.modes[p.ID] = Mode{
			ID:          p.ID,
			Label:       p.Label,
			Description: p.Description,
			Tips:        p.Tips,
			Override:    o,
		}
	}

	manual, ok := c.modes[ManualID]
	if !ok {
		return nil, fmt.Errorf("modes: catalog is missing the %q mode", ManualID)
	}
	if c.order[0] != ManualID {
		return nil, fmt.Errorf("modes: the %q mode must be declared first", ManualID)
	}
	if !manual.Override.IsEmpty() {
		return nil, fmt.Errorf("modes: the %q mode must not carry overrides", ManualID)
	}
	return c, nil
}

func overrideFrom(fields map[string]string) (exposure.Override, error) {
	var o exposure.Override
	for field, value := range fields {
		if err := o.Set(field, value); err != nil {
			return exposure.Override{}, err
		}
	}
	return o, nil
}

// List returns every mode in declaration order. The returned modes
// share nothing with the catalog's own state.
func (c *Catalog) List() []Mode {
	out := make([]Mode, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.modes[id].clone())
	}
	return out
}

// Get resolves a mode id, failing with ErrNotFound for unknown ids.
func (c *Catalog) Get(id string) (Mode, error) {
	m, ok := c.modes[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.clone(), nil
}

// IDs returns the mode ids in declaration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len reports the number of declared modes.
func (c *Catalog) Len() int { return len(c.order) }
