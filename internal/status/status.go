// Package status reports live share state to authenticated viewers.
package status

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/internal/share"
	"github.com/campass/campass-gateway/pkg/camera"
	"github.com/campass/campass-gateway/pkg/log"
	"github.com/campass/campass-gateway/pkg/router"
)

const keepaliveInterval = 15 * time.Second

type Handler struct {
	store   *share.Store
	gates   *gate.Controller
	cameras camera.Provider
}

func NewHandler(store *share.Store, gates *gate.Controller, cameras camera.Provider) *Handler {
	return &Handler{
		store:   store,
		gates:   gates,
		cameras: cameras,
	}
}

type cameraInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statusResponse struct {
	Enabled bool         `json:"enabled"`
	Cameras []cameraInfo `json:"cameras"`
}

// GetStatus returns the share's current gate state and camera list. Both
// are read live on every call, never cached, so a toggle or a camera
// change is visible on the next request.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	slug := c.Params("slug")

	sh, err := h.store.Get(slug)
	if err != nil {
		return router.ResponseAuthFailed(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cameras := make([]cameraInfo, 0, len(sh.Cameras))
	for _, cameraID := range sh.Cameras {
		name, err := h.cameras.Name(ctx, cameraID)
		if err != nil {
			name = cameraID
		}
		cameras = append(cameras, cameraInfo{ID: cameraID, Name: name})
	}

	return c.Status(fiber.StatusOK).JSON(statusResponse{
		Enabled: h.gates.Enabled(slug),
		Cameras: cameras,
	})
}

// StreamEvents pushes gate flips to the viewer as server-sent events,
// with periodic keepalives. The viewer uses it to swap between the live
// stream and the disabled placeholder without reloading.
func (h *Handler) StreamEvents(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if !h.store.Exists(slug) {
		return router.ResponseAuthFailed(c)
	}

	changes, unwatch := h.gates.Watch(slug)
	enabled := h.gates.Enabled(slug)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unwatch()

		if err := writeEvent(w, enabled); err != nil {
			return
		}

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case state := <-changes:
				if err := writeEvent(w, state); err != nil {
					return
				}
				// The share may have been deleted rather than toggled.
				if !h.store.Exists(slug) {
					return
				}
			case <-keepalive.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	log.Print(c).Info("event stream opened for slug " + slug)
	return nil
}

func writeEvent(w *bufio.Writer, enabled bool) error {
	if _, err := fmt.Fprintf(w, "data: {\"enabled\": %t}\n\n", enabled); err != nil {
		return err
	}
	return w.Flush()
}
