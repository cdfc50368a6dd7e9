package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	pkgAuth "github.com/campass/campass-gateway/pkg/auth"
	"github.com/campass/campass-gateway/pkg/router"

	ctlAdmin "github.com/campass/campass-gateway/internal/admin"
	ctlAuth "github.com/campass/campass-gateway/internal/auth"
	ctlPages "github.com/campass/campass-gateway/internal/pages"
	ctlStatus "github.com/campass/campass-gateway/internal/status"
	ctlStream "github.com/campass/campass-gateway/internal/stream"
)

// Controllers bundles every constructed handler so Routes only does
// wiring.
type Controllers struct {
	Auth   *ctlAuth.Handler
	Admin  *ctlAdmin.Handler
	Pages  *ctlPages.Handler
	Status *ctlStatus.Handler
	Stream *ctlStream.Handler
}

func Routes(app *fiber.App, ctl Controllers, sessionAuth fiber.Handler) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	// Route for Index
	// ---------------------------------------------
	index := func(c *fiber.Ctx) error {
		return router.ResponseSuccessWithData(c, "CamPass Gateway", fiber.Map{
			"service": "campass-gateway",
			"docs":    router.BaseURL + "/docs/",
		})
	}
	if router.BaseURL == "" {
		app.Get("/", index)
	} else {
		app.Get(router.BaseURL, index)
		app.Get(router.BaseURL+"/", index)
	}

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	// ============================================================
	// ADMIN ROUTES (X-Admin-Secret authentication)
	// ============================================================
	adminMiddleware := pkgAuth.AdminAuth()

	app.Get(router.BaseURL+"/admin/stats", adminMiddleware, ctl.Admin.GetStats)
	app.Get(router.BaseURL+"/admin/health", adminMiddleware, ctl.Admin.GetHealth)

	// Share Management
	app.Post(router.BaseURL+"/admin/shares", adminMiddleware, ctl.Admin.CreateShare)
	app.Get(router.BaseURL+"/admin/shares", adminMiddleware, ctl.Admin.GetShares)
	app.Get(router.BaseURL+"/admin/shares/:slug", adminMiddleware, ctl.Admin.GetShare)
	app.Patch(router.BaseURL+"/admin/shares/:slug", adminMiddleware, ctl.Admin.UpdateShare)
	app.Delete(router.BaseURL+"/admin/shares/:slug", adminMiddleware, ctl.Admin.DeleteShare)
	app.Post(router.BaseURL+"/admin/shares/:slug/enabled", adminMiddleware, ctl.Admin.SetEnabled)
	app.Get(router.BaseURL+"/admin/shares/:slug/qr", adminMiddleware, ctl.Admin.GetShareQR)

	// ============================================================
	// GUEST ROUTES (share-scoped, cookie session authentication)
	// ============================================================
	// The share API has to be registered before the bare slug pages so
	// fiber does not swallow /:slug/api/* into the wildcard handlers.
	app.Post(router.BaseURL+"/:slug/api/auth", ctl.Auth.Authenticate)
	app.Get(router.BaseURL+"/:slug/api/status", sessionAuth, ctl.Status.GetStatus)
	app.Get(router.BaseURL+"/:slug/api/events", sessionAuth, ctl.Status.StreamEvents)
	app.Get(router.BaseURL+"/:slug/api/stream/:camera", sessionAuth, ctl.Stream.GetStream)

	app.Get(router.BaseURL+"/:slug/viewer", ctl.Pages.GetViewerPage)
	app.Get(router.BaseURL+"/:slug/", ctl.Pages.GetPinPage)
	app.Get(router.BaseURL+"/:slug", ctl.Pages.RedirectSlug)
}
