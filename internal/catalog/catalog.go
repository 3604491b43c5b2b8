// Package catalog is the thin in-memory CRUD store over sound-buttons,
// scenes, and lighting-effects described in spec.md §3/§4.6. Devices
// themselves live in internal/registry; the catalog only references device
// ids.
package catalog

import (
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/lifxd/lifxd/internal/effects"
)

// ErrNotFound is returned by Get/Update/Delete for an unknown id.
var ErrNotFound = errors.NotFoundf("catalog record")

// NoLightEffect is the sentinel meaning "no lighting effect attached",
// per spec.md §3 SoundButton.
const NoLightEffect = "none"

// SoundButton is one playable sound-and-optional-light trigger.
type SoundButton struct {
	ID            string
	Name          string
	Description   string
	AudioBlobName string
	LightEffect   string // LightingEffect id, or NoLightEffect
	ColorTag      string
	IconTag       string
	SortOrder     int
	Volume        int // 0-100
	TargetDevices []int
}

// DeviceOverride is a scene's per-device color/brightness override.
type DeviceOverride struct {
	Color      *string
	Brightness *int
}

// Scene is a named, playable lighting configuration.
type Scene struct {
	ID            string
	Name          string
	Description   string
	Configuration map[string]interface{}
	Colors        []string
	IconTag       string
	TargetDevices []int
	Script        *effects.Script
	TurnOnIfOff   bool
	Overrides     map[int]DeviceOverride
}

// LightingEffectType distinguishes seeded presets from user-authored
// effects.
type LightingEffectType string

const (
	LightingEffectPreset LightingEffectType = "preset"
	LightingEffectCustom LightingEffectType = "custom"
)

// LightingEffect is a named, reusable Script.
type LightingEffect struct {
	ID                 string
	Name               string
	Type               LightingEffectType
	DurationMs         int
	IconTag            string
	HiddenFromDashboard bool
	Script             effects.Script
}

// Catalog is the single in-memory store for all three record kinds.
// Reads/writes are serialized behind one mutex; the store is small and
// read-heavy enough that a single lock is simpler than per-kind locks.
type Catalog struct {
	mu sync.RWMutex

	soundButtons map[string]*SoundButton
	scenes       map[string]*Scene
	effectsByID  map[string]*LightingEffect
}

// New constructs an empty Catalog. Call SeedDefaults to populate the
// startup seed data spec.md §4.6 requires.
func New() *Catalog {
	return &Catalog{
		soundButtons: make(map[string]*SoundButton),
		scenes:       make(map[string]*Scene),
		effectsByID:  make(map[string]*LightingEffect),
	}
}

func newID() string { return uuid.NewString() }

// -- SoundButton CRUD --

func (c *Catalog) ListSoundButtons() []*SoundButton {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*SoundButton, 0, len(c.soundButtons))
	for _, sb := range c.soundButtons {
		cp := *sb
		out = append(out, &cp)
	}
	return out
}

func (c *Catalog) CreateSoundButton(sb SoundButton) *SoundButton {
	sb.ID = newID()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.soundButtons[sb.ID] = &sb
	cp := sb
	return &cp
}

func (c *Catalog) GetSoundButton(id string) (*SoundButton, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sb, ok := c.soundButtons[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sb
	return &cp, nil
}

func (c *Catalog) DeleteSoundButton(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.soundButtons[id]; !ok {
		return ErrNotFound
	}
	delete(c.soundButtons, id)
	return nil
}

// -- Scene CRUD --

func (c *Catalog) ListScenes() []*Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Scene, 0, len(c.scenes))
	for _, s := range c.scenes {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

func (c *Catalog) CreateScene(s Scene) *Scene {
	s.ID = newID()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes[s.ID] = &s
	cp := s
	return &cp
}

func (c *Catalog) GetScene(id string) (*Scene, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// UpdateScene applies patch over the stored scene's fields. patch is
// applied field-by-field so a partial JSON body only touches what it sets.
func (c *Catalog) UpdateScene(id string, patch ScenePatch) (*Scene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.scenes[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.applyTo(s)
	cp := *s
	return &cp, nil
}

func (c *Catalog) DeleteScene(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scenes[id]; !ok {
		return ErrNotFound
	}
	delete(c.scenes, id)
	return nil
}

// ScenePatch is a partial update over a Scene's mutable fields.
type ScenePatch struct {
	Name          *string
	Description   *string
	Configuration map[string]interface{}
	Colors        []string
	TargetDevices []int
	Script        *effects.Script
	TurnOnIfOff   *bool
}

func (p ScenePatch) applyTo(s *Scene) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Configuration != nil {
		s.Configuration = p.Configuration
	}
	if p.Colors != nil {
		s.Colors = p.Colors
	}
	if p.TargetDevices != nil {
		s.TargetDevices = p.TargetDevices
	}
	if p.Script != nil {
		s.Script = p.Script
	}
	if p.TurnOnIfOff != nil {
		s.TurnOnIfOff = *p.TurnOnIfOff
	}
}

// -- LightingEffect CRUD --

func (c *Catalog) ListLightingEffects() []*LightingEffect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*LightingEffect, 0, len(c.effectsByID))
	for _, e := range c.effectsByID {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (c *Catalog) CreateLightingEffect(e LightingEffect) *LightingEffect {
	e.ID = newID()
	e.Type = LightingEffectCustom
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effectsByID[e.ID] = &e
	cp := e
	return &cp
}

func (c *Catalog) GetLightingEffect(id string) (*LightingEffect, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.effectsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// LightingEffectPatch is a partial update over a LightingEffect's mutable
// fields.
type LightingEffectPatch struct {
	Name                *string
	DurationMs          *int
	IconTag             *string
	HiddenFromDashboard *bool
	Script              *effects.Script
}

func (c *Catalog) UpdateLightingEffect(id string, patch LightingEffectPatch) (*LightingEffect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.effectsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.DurationMs != nil {
		e.DurationMs = *patch.DurationMs
	}
	if patch.IconTag != nil {
		e.IconTag = *patch.IconTag
	}
	if patch.HiddenFromDashboard != nil {
		e.HiddenFromDashboard = *patch.HiddenFromDashboard
	}
	if patch.Script != nil {
		e.Script = *patch.Script
	}
	cp := *e
	return &cp, nil
}

func (c *Catalog) DeleteLightingEffect(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.effectsByID[id]; !ok {
		return ErrNotFound
	}
	delete(c.effectsByID, id)
	return nil
}
