package main

// @title CamPass Gateway
// @version 1.0.0
// @description PIN-gated camera sharing gateway: short-lived guest links in front of a home camera API

// @host localhost:7001
// @BasePath /

// @securityDefinitions.apikey AdminAuth
// @in header
// @name X-Admin-Secret
// @description Admin secret key for managing shares

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/campass/campass-gateway/pkg/env"
	"github.com/campass/campass-gateway/pkg/log"
	"github.com/campass/campass-gateway/pkg/router"

	"github.com/campass/campass-gateway/internal"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	// StrictRouting keeps /:slug and /:slug/ distinct so the bare slug
	// can redirect to the slash form.
	app := fiber.New(fiber.Config{
		ErrorHandler:  router.HttpErrorHandler,
		BodyLimit:     router.BodyLimitBytes(),
		StrictRouting: true,
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression. Streams and event feeds must not pass through
	// the compressor: buffering breaks multipart frames and SSE.
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs") ||
				strings.Contains(c.Path(), "/api/stream/") ||
				strings.Contains(c.Path(), "/api/events")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router Cache
	app.Use(router.HttpCacheInMemory(router.CacheTTLSeconds))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Running Startup Tasks
	gateway := internal.Startup()

	// Load Internal Routes
	internal.Routes(app, gateway.Controllers, gateway.SessionAuth)

	// Running Routines Tasks
	internal.Routines(c, gateway)
	c.Start()

	// Get Server Configuration with defaults
	var serverConfig Server

	// SERVER_ADDRESS: default "0.0.0.0" (all interfaces)
	serverConfig.Address = env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")

	// SERVER_PORT: default "7001"
	serverConfig.Port = env.GetEnvStringOrDefault("SERVER_PORT", "7001")

	// Start Server
	go func() {
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Fatal(err.Error())
	}

	// Try To Shutdown Cron and Flush Pending Work
	c.Stop()
	gateway.Shutdown()
}
