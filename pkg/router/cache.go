package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// HttpCacheInMemory caches the static surfaces only: the index, the API
// docs, and the favicon. The cache is keyed by path, so anything whose
// response depends on a session cookie or live gate state (the share
// pages, everything under /api/, admin) must never pass through it — a
// cached viewer page would leak past the session check to the next
// anonymous visitor of the same URL.
func HttpCacheInMemory(ttl int) fiber.Handler {
	if ttl <= 0 {
		ttl = 5
	}
	return cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			return !cacheablePath(c.Path())
		},
		Expiration: time.Duration(ttl) * time.Second,
	})
}

func cacheablePath(path string) bool {
	switch path {
	case "/", BaseURL, BaseURL + "/", "/favicon.ico":
		return true
	}
	return strings.HasPrefix(path, BaseURL+"/docs/")
}
