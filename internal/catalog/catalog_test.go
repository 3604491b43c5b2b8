package catalog

import (
	"testing"

	"github.com/lifxd/lifxd/internal/effects"
)

func TestSeedDefaultsPopulatesFiveEffectsAndFourScenes(t *testing.T) {
	c := New()
	c.SeedDefaults()

	effects := c.ListLightingEffects()
	if len(effects) != 5 {
		t.Fatalf("got %d seeded lighting effects, want 5", len(effects))
	}
	scenes := c.ListScenes()
	if len(scenes) != 4 {
		t.Fatalf("got %d seeded scenes, want 4", len(scenes))
	}

	if _, err := c.GetLightingEffect("flash"); err != nil {
		t.Fatalf("GetLightingEffect(flash): %v", err)
	}
	if _, err := c.GetScene("movie-night"); err != nil {
		t.Fatalf("GetScene(movie-night): %v", err)
	}
}

func TestSoundButtonCRUD(t *testing.T) {
	c := New()

	sb := c.CreateSoundButton(SoundButton{Name: "Doorbell", LightEffect: NoLightEffect, Volume: 80})
	if sb.ID == "" {
		t.Fatal("CreateSoundButton did not assign an id")
	}

	got, err := c.GetSoundButton(sb.ID)
	if err != nil {
		t.Fatalf("GetSoundButton: %v", err)
	}
	if got.Name != "Doorbell" {
		t.Fatalf("got name %q, want Doorbell", got.Name)
	}

	if err := c.DeleteSoundButton(sb.ID); err != nil {
		t.Fatalf("DeleteSoundButton: %v", err)
	}
	if _, err := c.GetSoundButton(sb.ID); err != ErrNotFound {
		t.Fatalf("GetSoundButton after delete = %v, want ErrNotFound", err)
	}
}

func TestSceneUpdatePatchAppliesOnlySetFields(t *testing.T) {
	c := New()
	s := c.CreateScene(Scene{Name: "Before", Description: "orig", TurnOnIfOff: false})

	newName := "After"
	updated, err := c.UpdateScene(s.ID, ScenePatch{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateScene: %v", err)
	}
	if updated.Name != "After" {
		t.Fatalf("got name %q, want After", updated.Name)
	}
	if updated.Description != "orig" {
		t.Fatalf("unset field Description was clobbered: %q", updated.Description)
	}
}

func TestUpdateUnknownSceneReturnsNotFound(t *testing.T) {
	c := New()
	name := "x"
	if _, err := c.UpdateScene("missing", ScenePatch{Name: &name}); err != ErrNotFound {
		t.Fatalf("UpdateScene(missing) = %v, want ErrNotFound", err)
	}
}

func TestCreateLightingEffectIsMarkedCustom(t *testing.T) {
	c := New()
	e := c.CreateLightingEffect(LightingEffect{
		Name:   "My Effect",
		Script: effects.Script{Steps: []effects.Step{{DurationMs: 100, Brightness: 50}}},
	})
	if e.Type != LightingEffectCustom {
		t.Fatalf("got type %q, want custom", e.Type)
	}
	if e.ID == "" {
		t.Fatal("CreateLightingEffect did not assign an id")
	}
}
