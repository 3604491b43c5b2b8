package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"

	"github.com/lifxd/lifxd/internal/catalog"
	"github.com/lifxd/lifxd/internal/effects"
	"github.com/lifxd/lifxd/internal/pushhub"
)

func (a *API) registerSceneRoutes(g *fizz.RouterGroup) {
	g.GET("/scenes", []fizz.OperationOption{
		fizz.Summary("Lists every scene."),
	}, tonic.Handler(a.listScenes, http.StatusOK))

	g.POST("/scenes", []fizz.OperationOption{
		fizz.Summary("Creates a scene."),
	}, tonic.Handler(a.createScene, http.StatusOK))

	g.PUT("/scenes/:id", []fizz.OperationOption{
		fizz.Summary("Patches a scene."),
	}, tonic.Handler(a.updateScene, http.StatusOK))

	g.POST("/scenes/:id/apply", []fizz.OperationOption{
		fizz.Summary("Applies a scene to its target devices."),
	}, tonic.Handler(a.applyScene, http.StatusOK))

	g.DELETE("/scenes/:id", []fizz.OperationOption{
		fizz.Summary("Deletes a scene."),
	}, tonic.Handler(a.deleteScene, http.StatusOK))
}

func (a *API) listScenes(c *gin.Context) ([]*catalog.Scene, error) {
	return a.catalog.ListScenes(), nil
}

// sceneIn is the create body for a Scene, per spec.md §3.
type sceneIn struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Configuration map[string]interface{} `json:"configuration"`
	Colors        []string               `json:"colors"`
	IconTag       string                 `json:"iconTag"`
	TargetDevices []int                  `json:"targetDevices"`
	Script        *effects.Script        `json:"script"`
	TurnOnIfOff   bool                   `json:"turnOnIfOff"`
}

func (a *API) createScene(c *gin.Context, in *sceneIn) (*catalog.Scene, error) {
	if in.Script == nil && in.Configuration == nil {
		return nil, errors.NewNotValid(nil, "scene requires either configuration or script")
	}
	return a.catalog.CreateScene(catalog.Scene{
		Name:          in.Name,
		Description:   in.Description,
		Configuration: in.Configuration,
		Colors:        in.Colors,
		IconTag:       in.IconTag,
		TargetDevices: in.TargetDevices,
		Script:        in.Script,
		TurnOnIfOff:   in.TurnOnIfOff,
	}), nil
}

type sceneIDIn struct {
	ID string `path:"id"`
}

// scenePatchIn mirrors catalog.ScenePatch with JSON-friendly pointer fields.
type scenePatchIn struct {
	sceneIDIn
	Name          *string                `json:"name"`
	Description   *string                `json:"description"`
	Configuration map[string]interface{} `json:"configuration"`
	Colors        []string               `json:"colors"`
	TargetDevices []int                  `json:"targetDevices"`
	Script        *effects.Script        `json:"script"`
	TurnOnIfOff   *bool                  `json:"turnOnIfOff"`
}

func (a *API) updateScene(c *gin.Context, in *scenePatchIn) (*catalog.Scene, error) {
	return a.catalog.UpdateScene(in.ID, catalog.ScenePatch{
		Name:          in.Name,
		Description:   in.Description,
		Configuration: in.Configuration,
		Colors:        in.Colors,
		TargetDevices: in.TargetDevices,
		Script:        in.Script,
		TurnOnIfOff:   in.TurnOnIfOff,
	})
}

func (a *API) deleteScene(c *gin.Context, in *sceneIDIn) (*MessageOut, error) {
	if err := a.catalog.DeleteScene(in.ID); err != nil {
		return nil, err
	}
	return &MessageOut{Message: "scene deleted"}, nil
}

func (a *API) applyScene(c *gin.Context, in *sceneIDIn) (*MessageOut, error) {
	scene, err := a.catalog.GetScene(in.ID)
	if err != nil {
		return nil, err
	}

	script := sceneScript(scene)
	macs := a.macsForDeviceIDs(scene.TargetDevices)

	sessions, err := a.runtime.Start(scene.ID, macs, *script, nil)
	if err != nil {
		return nil, err
	}

	appliedTo := make([]int, 0, len(sessions))
	for _, s := range sessions {
		appliedTo = append(appliedTo, s.DeviceID)
	}
	a.hub.Broadcast(pushhub.EventSceneApplied, map[string]interface{}{
		"sceneId": scene.ID,
		"devices": appliedTo,
	})

	return &MessageOut{Message: "scene applied"}, nil
}

// sceneScript derives a playable Script from a Scene: its authoritative
// step-script if present, otherwise a single-step script synthesized from
// its static configuration, per spec.md §3's "exactly one of configuration
// or step-script is authoritative" invariant.
func sceneScript(scene *catalog.Scene) *effects.Script {
	if scene.Script != nil {
		return scene.Script
	}

	step := effects.Step{DurationMs: 1000, EasingMs: 500}
	if b, ok := scene.Configuration["brightness"].(int); ok {
		step.Brightness = b
	} else if b, ok := scene.Configuration["brightness"].(float64); ok {
		step.Brightness = int(b)
	}
	if k, ok := scene.Configuration["temperature"].(int); ok {
		step.Kelvin = uint16(k)
	} else if k, ok := scene.Configuration["temperature"].(float64); ok {
		step.Kelvin = uint16(k)
	}
	if len(scene.Colors) > 0 {
		step.Hex = scene.Colors[0]
	}

	return &effects.Script{LoopCount: 1, TurnOnIfOff: scene.TurnOnIfOff, Steps: []effects.Step{step}}
}

func (a *API) macsForDeviceIDs(ids []int) []string {
	macs := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, err := a.registry.Get(id); err == nil {
			macs = append(macs, d.MAC)
		}
	}
	return macs
}
