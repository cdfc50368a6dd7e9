package stream

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/internal/notify"
	"github.com/campass/campass-gateway/internal/share"
	"github.com/campass/campass-gateway/pkg/router"
)

type Handler struct {
	store  *share.Store
	gates  *gate.Controller
	proxy  *Proxy
	notify *notify.Engine
}

func NewHandler(store *share.Store, gates *gate.Controller, proxy *Proxy, engine *notify.Engine) *Handler {
	return &Handler{
		store:  store,
		gates:  gates,
		proxy:  proxy,
		notify: engine,
	}
}

// GetStream relays live camera output to an authenticated guest. A
// camera outside the share's whitelist is treated exactly like a failed
// login, and a disabled share answers 503 so the viewer can show its
// placeholder.
func (h *Handler) GetStream(c *fiber.Ctx) error {
	slug := c.Params("slug")
	cameraID := c.Params("camera")

	sh, err := h.store.Get(slug)
	if err != nil {
		return router.ResponseAuthFailed(c)
	}
	if !sh.Allows(cameraID) {
		return router.ResponseAuthFailed(c)
	}
	if !h.gates.Enabled(slug) {
		return router.ResponseShareUnavailable(c)
	}

	remoteIP, _ := c.Locals("remote_ip").(string)
	h.notify.Record(notify.EventCameraView, slug, cameraID, remoteIP)

	stream := h.proxy.Open(c.Context(), slug, cameraID)

	c.Set(fiber.HeaderContentType, stream.ContentType())
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderPragma, "no-cache")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		stream.Run(w)
	}))

	return nil
}
