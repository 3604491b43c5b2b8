package catalog

import "github.com/lifxd/lifxd/internal/effects"

// SeedDefaults populates the five default lighting effects and four default
// scenes spec.md §4.6/§6 requires. Called once at startup; the in-memory
// Catalog has no persistence so this re-seeds on every process start.
func (c *Catalog) SeedDefaults() {
	for _, e := range defaultLightingEffects() {
		c.mu.Lock()
		c.effectsByID[e.ID] = e
		c.mu.Unlock()
	}
	for _, s := range defaultScenes() {
		c.mu.Lock()
		c.scenes[s.ID] = s
		c.mu.Unlock()
	}
}

func defaultLightingEffects() []*LightingEffect {
	return []*LightingEffect{
		{
			ID:         "flash",
			Name:       "Flash",
			Type:       LightingEffectPreset,
			DurationMs: 300,
			IconTag:    "bolt",
			Script: effects.Script{
				LoopCount: 1,
				Steps: []effects.Step{
					{Hex: "#FFFFFF", Brightness: 100, DurationMs: 100},
					{Kelvin: 3500, Brightness: 50, DurationMs: 100},
					{Hex: "#FFFFFF", Brightness: 100, DurationMs: 100},
				},
			},
		},
		{
			ID:         "strobe",
			Name:       "Strobe",
			Type:       LightingEffectPreset,
			DurationMs: 2000,
			IconTag:    "zap",
			Script: effects.Script{
				Loop:      true,
				LoopCount: 10,
				Steps: []effects.Step{
					{Hex: "#FFFFFF", Brightness: 100, DurationMs: 100},
					{Hex: "#000000", Brightness: 0, DurationMs: 100},
				},
			},
		},
		{
			ID:         "fade",
			Name:       "Fade",
			Type:       LightingEffectPreset,
			DurationMs: 5000,
			IconTag:    "sunset",
			Script: effects.Script{
				LoopCount: 1,
				Steps: []effects.Step{
					{Kelvin: 2700, Brightness: 100, DurationMs: 2500, EasingMs: 2500},
					{Kelvin: 2700, Brightness: 10, DurationMs: 2500, EasingMs: 2500},
				},
			},
		},
		{
			ID:         "color-cycle",
			Name:       "Color Cycle",
			Type:       LightingEffectPreset,
			DurationMs: 6000,
			IconTag:    "palette",
			Script: effects.Script{
				Loop:      true,
				LoopCount: 0,
				Steps: []effects.Step{
					{Hex: "#FF0000", Brightness: 80, DurationMs: 1500, EasingMs: 1000},
					{Hex: "#00FF00", Brightness: 80, DurationMs: 1500, EasingMs: 1000},
					{Hex: "#0000FF", Brightness: 80, DurationMs: 1500, EasingMs: 1000},
					{Hex: "#FFFF00", Brightness: 80, DurationMs: 1500, EasingMs: 1000},
				},
			},
		},
		{
			ID:         "breathe",
			Name:       "Breathe",
			Type:       LightingEffectPreset,
			DurationMs: 4000,
			IconTag:    "wind",
			Script: effects.Script{
				Loop:      true,
				LoopCount: 0,
				Steps: []effects.Step{
					{Kelvin: 4000, Brightness: 100, DurationMs: 2000, EasingMs: 2000},
					{Kelvin: 4000, Brightness: 20, DurationMs: 2000, EasingMs: 2000},
				},
			},
		},
	}
}

func defaultScenes() []*Scene {
	return []*Scene{
		{
			ID:          "movie-night",
			Name:        "Movie Night",
			Description: "Dim, warm light for watching a film",
			Configuration: map[string]interface{}{
				"brightness":  20,
				"temperature": 2700,
			},
			Colors:      []string{"#2B1A0E"},
			IconTag:     "film",
			TurnOnIfOff: true,
			Script: &effects.Script{
				LoopCount: 1,
				Steps: []effects.Step{
					{Kelvin: 2700, Brightness: 20, DurationMs: 1000, EasingMs: 1000},
				},
			},
		},
		{
			ID:          "focus-mode",
			Name:        "Focus Mode",
			Description: "Bright, cool light for concentration",
			Configuration: map[string]interface{}{
				"brightness":  90,
				"temperature": 5000,
			},
			Colors:      []string{"#E8F0FF"},
			IconTag:     "target",
			TurnOnIfOff: true,
			Script: &effects.Script{
				LoopCount: 1,
				Steps: []effects.Step{
					{Kelvin: 5000, Brightness: 90, DurationMs: 1000, EasingMs: 500},
				},
			},
		},
		{
			ID:          "party-time",
			Name:        "Party Time",
			Description: "Cycling colors at full brightness",
			Configuration: map[string]interface{}{
				"brightness": 100,
			},
			Colors:      []string{"#FF00FF", "#00FFFF", "#FFFF00"},
			IconTag:     "sparkles",
			TurnOnIfOff: true,
			Script: &effects.Script{
				Loop:      true,
				LoopCount: 0,
				Steps: []effects.Step{
					{Hex: "#FF00FF", Brightness: 100, DurationMs: 800, EasingMs: 300},
					{Hex: "#00FFFF", Brightness: 100, DurationMs: 800, EasingMs: 300},
					{Hex: "#FFFF00", Brightness: 100, DurationMs: 800, EasingMs: 300},
				},
			},
		},
		{
			ID:          "relax",
			Name:        "Relax",
			Description: "Soft warm light",
			Configuration: map[string]interface{}{
				"brightness":  30,
				"temperature": 2200,
			},
			Colors:      []string{"#3A2415"},
			IconTag:     "feather",
			TurnOnIfOff: true,
			Script: &effects.Script{
				LoopCount: 1,
				Steps: []effects.Step{
					{Kelvin: 2200, Brightness: 30, DurationMs: 1500, EasingMs: 1500},
				},
			},
		},
	}
}
