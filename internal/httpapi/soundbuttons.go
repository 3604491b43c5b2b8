package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"
	log "github.com/sirupsen/logrus"
	"github.com/wI2L/fizz"

	"github.com/lifxd/lifxd/internal/audiostore"
	"github.com/lifxd/lifxd/internal/catalog"
)

func (a *API) registerSoundButtonRoutes(g *fizz.RouterGroup) {
	g.GET("/sound-buttons", []fizz.OperationOption{
		fizz.Summary("Lists every sound button."),
	}, tonic.Handler(a.listSoundButtons, http.StatusOK))

	// Multipart upload (audioFile + metadata fields) isn't expressible as a
	// tonic-bound JSON struct, so this route is a plain gin handler,
	// registered the same way fizz's unsecuredGroup mixes raw and
	// tonic-bound handlers in the teacher.
	g.POST("/sound-buttons", []fizz.OperationOption{
		fizz.Summary("Creates a sound button from an uploaded audio file."),
	}, a.createSoundButton)

	g.DELETE("/sound-buttons/:id", []fizz.OperationOption{
		fizz.Summary("Deletes a sound button and its audio blob."),
	}, tonic.Handler(a.deleteSoundButton, http.StatusOK))

	g.GET("/audio/:name", []fizz.OperationOption{
		fizz.Summary("Serves a stored audio blob by name."),
	}, a.getAudio)
}

func (a *API) listSoundButtons(c *gin.Context) ([]*catalog.SoundButton, error) {
	return a.catalog.ListSoundButtons(), nil
}

func (a *API) createSoundButton(c *gin.Context) {
	file, header, err := c.Request.FormFile("audioFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.BadRequestf("missing audioFile").Error()})
		return
	}
	defer file.Close()

	name, err := a.audio.Put(header.Filename, file)
	if err != nil {
		log.WithField("component", "httpapi").WithError(err).Warn("audio upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store audio"})
		return
	}

	volume, _ := strconv.Atoi(c.PostForm("volume"))
	sortOrder, _ := strconv.Atoi(c.PostForm("sortOrder"))
	lightEffect := c.PostForm("lightEffect")
	if lightEffect == "" {
		lightEffect = catalog.NoLightEffect
	}

	sb := a.catalog.CreateSoundButton(catalog.SoundButton{
		Name:          c.PostForm("name"),
		Description:   c.PostForm("description"),
		AudioBlobName: name,
		LightEffect:   lightEffect,
		ColorTag:      c.PostForm("colorTag"),
		IconTag:       c.PostForm("iconTag"),
		SortOrder:     sortOrder,
		Volume:        volume,
	})

	c.JSON(http.StatusOK, sb)
}

type soundButtonIDIn struct {
	ID string `path:"id"`
}

func (a *API) deleteSoundButton(c *gin.Context, in *soundButtonIDIn) (*MessageOut, error) {
	sb, err := a.catalog.GetSoundButton(in.ID)
	if err != nil {
		return nil, err
	}
	if err := a.catalog.DeleteSoundButton(in.ID); err != nil {
		return nil, err
	}
	if err := a.audio.Delete(sb.AudioBlobName); err != nil && err != audiostore.ErrBlobMissing {
		log.WithField("component", "httpapi").WithError(err).Warn("failed to delete audio blob")
	}
	return &MessageOut{Message: "sound button deleted"}, nil
}

func (a *API) getAudio(c *gin.Context) {
	name := c.Param("name")
	rc, err := a.audio.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audio not found"})
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "audio/mpeg")
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.WithField("component", "httpapi").WithError(err).Debug("audio stream interrupted")
	}
}
