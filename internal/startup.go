package internal

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/internal/notify"
	"github.com/campass/campass-gateway/internal/share"
	pkgAuth "github.com/campass/campass-gateway/pkg/auth"
	"github.com/campass/campass-gateway/pkg/camera"
	"github.com/campass/campass-gateway/pkg/env"
	"github.com/campass/campass-gateway/pkg/log"

	ctlAdmin "github.com/campass/campass-gateway/internal/admin"
	ctlAuth "github.com/campass/campass-gateway/internal/auth"
	ctlPages "github.com/campass/campass-gateway/internal/pages"
	ctlStatus "github.com/campass/campass-gateway/internal/status"
	ctlStream "github.com/campass/campass-gateway/internal/stream"
)

// App holds the gateway's long-lived state: the in-memory share store,
// gate controller, upstream camera client, and the constructed HTTP
// handlers. Built once at process start.
type App struct {
	Store       *share.Store
	Gates       *gate.Controller
	Persistence *share.Persistence
	Cameras     *camera.HTTPProvider
	Notify      *notify.Engine
	Throttle    *pkgAuth.Throttle
	Controllers Controllers
	SessionAuth fiber.Handler
}

// Startup wires the gateway together and rehydrates shares from the
// database when one is configured. Gates are NOT rehydrated: every
// share comes back disabled after a restart, and the owner re-enables
// sharing explicitly.
func Startup() *App {
	log.Print(nil).Info("Running Startup Tasks")

	app := &App{
		Store:    share.NewStore(),
		Gates:    gate.NewController(),
		Cameras:  camera.NewHTTPProvider(),
		Notify:   notify.NewEngine(),
		Throttle: pkgAuth.NewThrottle(),
	}

	if dsn := env.GetEnvStringOrDefault("SHARES_DATABASE_URL", ""); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		persistence, err := share.OpenPersistence(ctx, dsn)
		if err != nil {
			log.Print(nil).Fatal("open share database: " + err.Error())
		}
		app.Persistence = persistence

		shares, err := persistence.LoadAll(ctx)
		if err != nil {
			log.Print(nil).Fatal("load shares: " + err.Error())
		}
		for _, sh := range shares {
			if err := app.Store.Upsert(sh); err != nil {
				log.Print(nil).Warn("skipping invalid persisted share " + sh.Slug + ": " + err.Error())
			}
		}
		log.Print(nil).Info("Loaded shares from database: ", app.Store.Count())
	} else {
		log.Print(nil).Warn("SHARES_DATABASE_URL not set, shares will not survive restarts")
	}

	proxy := ctlStream.NewProxy(app.Cameras, app.Gates)
	app.Controllers = Controllers{
		Auth:   ctlAuth.NewHandler(app.Store, app.Throttle, app.Notify),
		Admin:  ctlAdmin.NewHandler(app.Store, app.Gates, app.Persistence, app.Cameras, app.Notify),
		Pages:  ctlPages.NewHandler(app.Store),
		Status: ctlStatus.NewHandler(app.Store, app.Gates, app.Cameras),
		Stream: ctlStream.NewHandler(app.Store, app.Gates, proxy, app.Notify),
	}
	app.SessionAuth = pkgAuth.SessionAuth(app.Store)

	return app
}

// Shutdown flushes what can be flushed: pending webhook deliveries and
// the database pool.
func (a *App) Shutdown() {
	a.Notify.Shutdown()
	if a.Persistence != nil {
		if err := a.Persistence.Close(); err != nil {
			log.Print(nil).Error("close share database: " + err.Error())
		}
	}
}
