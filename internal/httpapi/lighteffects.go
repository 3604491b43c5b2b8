package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"

	"github.com/lifxd/lifxd/internal/catalog"
	"github.com/lifxd/lifxd/internal/effects"
	"github.com/lifxd/lifxd/internal/pushhub"
)

func (a *API) registerLightingEffectRoutes(g *fizz.RouterGroup) {
	g.GET("/light-effects", []fizz.OperationOption{
		fizz.Summary("Lists every lighting effect."),
	}, tonic.Handler(a.listLightingEffects, http.StatusOK))

	g.POST("/light-effects", []fizz.OperationOption{
		fizz.Summary("Creates a custom lighting effect."),
	}, tonic.Handler(a.createLightingEffect, http.StatusOK))

	g.PUT("/light-effects/:id", []fizz.OperationOption{
		fizz.Summary("Patches a lighting effect."),
	}, tonic.Handler(a.updateLightingEffect, http.StatusOK))

	g.POST("/light-effects/:id/apply", []fizz.OperationOption{
		fizz.Summary("Plays a lighting effect on the given devices, or on the adopted online devices when none are given."),
	}, tonic.Handler(a.applyLightingEffect, http.StatusOK))

	g.POST("/light-effects/:id/stop", []fizz.OperationOption{
		fizz.Summary("Stops a lighting effect."),
	}, tonic.Handler(a.stopLightingEffect, http.StatusOK))

	g.DELETE("/light-effects/:id", []fizz.OperationOption{
		fizz.Summary("Deletes a lighting effect."),
	}, tonic.Handler(a.deleteLightingEffect, http.StatusOK))
}

func (a *API) listLightingEffects(c *gin.Context) ([]*catalog.LightingEffect, error) {
	return a.catalog.ListLightingEffects(), nil
}

type lightingEffectIn struct {
	Name       string         `json:"name"`
	DurationMs int            `json:"durationMs"`
	IconTag    string         `json:"iconTag"`
	Script     effects.Script `json:"script"`
}

func (a *API) createLightingEffect(c *gin.Context, in *lightingEffectIn) (*catalog.LightingEffect, error) {
	if err := in.Script.Validate(); err != nil {
		return nil, err
	}
	return a.catalog.CreateLightingEffect(catalog.LightingEffect{
		Name:       in.Name,
		DurationMs: in.DurationMs,
		IconTag:    in.IconTag,
		Script:     in.Script,
	}), nil
}

type lightingEffectIDIn struct {
	ID string `path:"id"`
}

type lightingEffectPatchIn struct {
	lightingEffectIDIn
	Name                *string         `json:"name"`
	DurationMs          *int            `json:"durationMs"`
	IconTag             *string         `json:"iconTag"`
	HiddenFromDashboard *bool           `json:"hiddenFromDashboard"`
	Script              *effects.Script `json:"script"`
}

func (a *API) updateLightingEffect(c *gin.Context, in *lightingEffectPatchIn) (*catalog.LightingEffect, error) {
	if in.Script != nil {
		if err := in.Script.Validate(); err != nil {
			return nil, err
		}
	}
	return a.catalog.UpdateLightingEffect(in.ID, catalog.LightingEffectPatch{
		Name:                in.Name,
		DurationMs:          in.DurationMs,
		IconTag:             in.IconTag,
		HiddenFromDashboard: in.HiddenFromDashboard,
		Script:              in.Script,
	})
}

func (a *API) deleteLightingEffect(c *gin.Context, in *lightingEffectIDIn) (*MessageOut, error) {
	if err := a.catalog.DeleteLightingEffect(in.ID); err != nil {
		return nil, err
	}
	return &MessageOut{Message: "lighting effect deleted"}, nil
}

type applyLightingEffectIn struct {
	lightingEffectIDIn
	LoopCount *int  `json:"loopCount"`
	DeviceIDs []int `json:"deviceIds"`
}

func (a *API) applyLightingEffect(c *gin.Context, in *applyLightingEffectIn) (*MessageOut, error) {
	effect, err := a.catalog.GetLightingEffect(in.ID)
	if err != nil {
		return nil, err
	}

	macs := a.macsForDeviceIDs(in.DeviceIDs)
	sessions, err := a.runtime.Start(effect.ID, macs, effect.Script, in.LoopCount)
	if err != nil {
		return nil, err
	}

	for _, s := range sessions {
		a.hub.Broadcast(pushhub.EventLightEffectTriggered, map[string]interface{}{
			"deviceId": s.DeviceID,
			"effect":   effect.ID,
		})
	}

	return &MessageOut{Message: "lighting effect applied"}, nil
}

type stopLightingEffectIn struct {
	lightingEffectIDIn
	DeviceIDs []int `json:"deviceIds"`
}

func (a *API) stopLightingEffect(c *gin.Context, in *stopLightingEffectIn) (*MessageOut, error) {
	macs := a.macsForDeviceIDs(in.DeviceIDs)
	a.runtime.Stop(in.ID, macs)
	return &MessageOut{Message: "lighting effect stopped"}, nil
}
