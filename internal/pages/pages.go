// Package pages serves the embedded guest-facing HTML.
package pages

import (
	"embed"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campass/campass-gateway/internal/share"
	pkgAuth "github.com/campass/campass-gateway/pkg/auth"
	"github.com/campass/campass-gateway/pkg/validation"
)

//go:embed frontend/pin.html frontend/viewer.html
var frontend embed.FS

type Handler struct {
	store  *share.Store
	pin    string
	viewer string
}

func NewHandler(store *share.Store) *Handler {
	return &Handler{
		store:  store,
		pin:    mustPage("frontend/pin.html"),
		viewer: mustPage("frontend/viewer.html"),
	}
}

func mustPage(name string) string {
	data, err := frontend.ReadFile(name)
	if err != nil {
		panic("pages: missing embedded page " + name)
	}
	return string(data)
}

// RedirectSlug sends /:slug to /:slug/ so relative links on the pages
// resolve under the share path.
func (h *Handler) RedirectSlug(c *fiber.Ctx) error {
	return c.Redirect("/"+c.Params("slug")+"/", fiber.StatusFound)
}

// GetPinPage serves the passcode prompt. It renders for every
// well-formed slug whether or not a share exists, so the page itself
// never reveals which links are real. A guest holding a valid session
// is sent straight to the viewer.
func (h *Handler) GetPinPage(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if err := validation.ValidateSlug(slug); err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	if pkgAuth.HasValidSession(c, h.store, slug) {
		return c.Redirect("/"+slug+"/viewer", fiber.StatusFound)
	}

	return sendPage(c, h.pin, slug)
}

// GetViewerPage serves the camera grid to authenticated guests and
// bounces everyone else back to the passcode prompt.
func (h *Handler) GetViewerPage(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if err := validation.ValidateSlug(slug); err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	if !pkgAuth.HasValidSession(c, h.store, slug) {
		return c.Redirect("/"+slug+"/", fiber.StatusFound)
	}

	return sendPage(c, h.viewer, slug)
}

func sendPage(c *fiber.Ctx, page, slug string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.SendString(strings.ReplaceAll(page, "{{SLUG}}", slug))
}
