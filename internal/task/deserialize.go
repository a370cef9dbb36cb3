package task

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/siot-decada-robotics/rmf-ros2/internal/robot"
)

// Builder constructs a concrete task for a specific robot from an already
// validated description.
type Builder func(rc *robot.Context, bookingID string) (*Task, error)

// ValidateFunc checks a raw description and returns human-readable reasons
// it cannot be executed. An empty result means the description is valid.
type ValidateFunc func(raw json.RawMessage) []string

// ParseFunc turns a valid raw description into a task builder.
type ParseFunc func(raw json.RawMessage) (Builder, error)

// ConsiderFunc lets a fleet decline a category it technically supports,
// for example while its scanner payload is out for maintenance.
type ConsiderFunc func(raw json.RawMessage) bool

type categoryEntry struct {
	validate ValidateFunc
	parse    ParseFunc
	consider ConsiderFunc
}

// Deserializer maps task categories to their validation and construction
// logic. One instance is shared by the dispatcher and the fleet bidders.
type Deserializer struct {
	mu         sync.RWMutex
	categories map[string]categoryEntry
}

// NewDeserializer creates an empty category registry.
func NewDeserializer() *Deserializer {
	return &Deserializer{categories: make(map[string]categoryEntry)}
}

// Add registers a category. Registering the same category twice replaces
// the earlier entry.
func (d *Deserializer) Add(category string, validate ValidateFunc, parse ParseFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.categories[category]
	entry.validate = validate
	entry.parse = parse
	d.categories[category] = entry
}

// SetConsider installs an acceptance hook for a category.
func (d *Deserializer) SetConsider(category string, consider ConsiderFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.categories[category]
	entry.consider = consider
	d.categories[category] = entry
}

// Categories lists the registered category names.
func (d *Deserializer) Categories() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.categories))
	for name := range d.categories {
		names = append(names, name)
	}
	return names
}

// Deserialize validates a raw description and, when valid, parses it into
// a builder. On failure it returns a nil builder and at least one reason.
func (d *Deserializer) Deserialize(category string, raw json.RawMessage) (Builder, []string) {
	d.mu.RLock()
	entry, ok := d.categories[category]
	d.mu.RUnlock()

	if !ok {
		return nil, []string{fmt.Sprintf("unknown task category %q", category)}
	}
	if entry.consider != nil && !entry.consider(raw) {
		return nil, []string{fmt.Sprintf("category %q is not being accepted right now", category)}
	}
	if entry.validate != nil {
		if errs := entry.validate(raw); len(errs) > 0 {
			return nil, errs
		}
	}
	builder, err := entry.parse(raw)
	if err != nil {
		return nil, []string{err.Error()}
	}
	return builder, nil
}
