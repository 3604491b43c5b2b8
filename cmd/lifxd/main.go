package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/audiostore"
	"github.com/lifxd/lifxd/internal/catalog"
	"github.com/lifxd/lifxd/internal/config"
	"github.com/lifxd/lifxd/internal/discovery"
	"github.com/lifxd/lifxd/internal/effects"
	"github.com/lifxd/lifxd/internal/httpapi"
	"github.com/lifxd/lifxd/internal/pushhub"
	"github.com/lifxd/lifxd/internal/registry"
	"github.com/lifxd/lifxd/internal/transport"
)

// shutdownDrain is the deadline spec.md §5 gives the effect runtime to
// finish restoring every active session before the process exits.
const shutdownDrain = 2 * time.Second

func init() {
	env := os.Getenv("ENVIRONMENT")

	switch env {
	case "", "DEV":
		log.SetFormatter(&log.TextFormatter{})
		log.SetOutput(os.Stdout)
		log.SetLevel(log.DebugLevel)
	case "PROD":
		log.SetFormatter(&log.JSONFormatter{})
		log.SetOutput(os.Stdout)
		log.SetLevel(log.WarnLevel)
		gin.SetMode(gin.ReleaseMode)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	reg := registry.New(time.Duration(cfg.DeviceGracePeriodSeconds) * time.Second)

	cat := catalog.New()
	cat.SeedDefaults()
	log.Info("seeded default lighting effects and scenes")

	audio, err := audiostore.Open(cfg.AudioDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open audio store")
	}

	// controls is wired up before the hub is constructed (the hub needs an
	// InboundHandler immediately) but its fields are only read once the HTTP
	// server starts accepting /ws connections, well after runtime and disco
	// exist below — mirroring frameDispatcher.onStateService's two-step wiring.
	controls := &controlHandler{reg: reg, cat: cat}
	hub := pushhub.New(controls.Handle)

	dispatcher := &frameDispatcher{reg: reg, hub: hub}

	tp, err := transport.New(cfg.Source, dispatcher)
	if err != nil {
		log.WithError(err).Fatal("failed to start transport")
	}

	devices := deviceAdapter{reg: reg}
	runtime := effects.NewRuntime(tp, devices)
	disco := discovery.New(tp, devices, runtime, reg)
	dispatcher.onStateService = disco.HandleStateService
	controls.runtime = runtime
	controls.disco = disco
	controls.hub = hub
	disco.Start()

	api := httpapi.New(cfg, reg, cat, runtime, disco, audio, hub, tp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http+push server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}

	disco.Stop()

	stopped := make(chan struct{})
	go func() {
		runtime.StopAll(nil)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		log.Warn("restore flush deadline exceeded")
	}
	tp.Shutdown(ctx)

	log.Info("graceful shutdown complete")
}

// controlHandler processes client->server /ws control messages (spec.md §6:
// discover_devices, play_sound, trigger_effect). It is a convenience mirror
// of the HTTP API, not a second source of truth: every action it takes goes
// through the same registry/catalog/runtime the HTTP handlers use.
type controlHandler struct {
	reg     *registry.Registry
	cat     *catalog.Catalog
	runtime *effects.Runtime
	disco   *discovery.Runner
	hub     *pushhub.Hub
}

func (h *controlHandler) Handle(in pushhub.Inbound) {
	switch in.Type {
	case "discover_devices":
		h.disco.TriggerDiscovery()

	case "play_sound":
		h.playSound(in.ButtonID)

	case "trigger_effect":
		h.triggerEffect(in.DeviceID, in.EffectType)

	default:
		log.WithField("component", "pushhub").WithField("type", in.Type).Debug("unrecognized control message")
	}
}

func (h *controlHandler) playSound(buttonID string) {
	sb, err := h.cat.GetSoundButton(buttonID)
	if err != nil {
		log.WithField("component", "pushhub").WithField("buttonId", buttonID).Debug("play_sound: unknown button")
		return
	}

	if sb.LightEffect == catalog.NoLightEffect {
		return
	}
	effect, err := h.cat.GetLightingEffect(sb.LightEffect)
	if err != nil {
		return
	}

	var macs []string
	if len(sb.TargetDevices) > 0 {
		for _, id := range sb.TargetDevices {
			if dev, err := h.reg.Get(id); err == nil {
				macs = append(macs, dev.MAC)
			}
		}
	} else {
		for _, d := range h.reg.AdoptedOnline() {
			macs = append(macs, d.MAC)
		}
	}
	if _, err := h.runtime.Start(effect.ID, macs, effect.Script, nil); err != nil {
		log.WithField("component", "pushhub").WithError(err).Debug("play_sound: light effect failed to start")
	}

	h.hub.Broadcast(pushhub.EventSoundPlayed, map[string]interface{}{
		"buttonId":  buttonID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *controlHandler) triggerEffect(deviceID, effectType string) {
	id, err := strconv.Atoi(deviceID)
	if err != nil {
		return
	}
	dev, err := h.reg.Get(id)
	if err != nil {
		return
	}
	effect, err := h.cat.GetLightingEffect(effectType)
	if err != nil {
		log.WithField("component", "pushhub").WithField("effectType", effectType).Debug("trigger_effect: unknown effect")
		return
	}

	if _, err := h.runtime.Start(effect.ID, []string{dev.MAC}, effect.Script, nil); err != nil {
		log.WithField("component", "pushhub").WithError(err).Debug("trigger_effect: failed to start")
	}
}
