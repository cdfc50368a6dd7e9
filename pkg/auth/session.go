package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campass/campass-gateway/internal/share"
	"github.com/campass/campass-gateway/pkg/router"
)

// Cookie max-age used for never-expiring sessions: ten years.
const neverExpiresCookieAge = 315360000

// CookieName returns the session cookie name for a share. Cookies are
// per-share so sessions on one share never leak to another.
func CookieName(slug string) string {
	return "campass_" + slug
}

// SessionCookie builds the httpOnly session cookie, scoped to the share's
// own path prefix.
func SessionCookie(slug, token string, sh share.Share, secure bool) *fiber.Cookie {
	maxAge := neverExpiresCookieAge
	if ttl, ok := share.SessionTTL(sh.Duration); ok {
		maxAge = int(ttl / time.Second)
	}
	return &fiber.Cookie{
		Name:     CookieName(slug),
		Value:    token,
		Path:     "/" + slug,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// SessionAuth validates the session cookie for the :slug route parameter.
// Unknown slug, missing cookie, wrong-share token, bad signature and
// expired token all fail with the same response so none of them can be
// told apart. On success the share slug is stored in locals.
//
// The gate is deliberately NOT checked here: some authenticated routes
// (status, events) must keep working while a share is switched off so the
// viewer can show a placeholder and notice re-enables.
func SessionAuth(store *share.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return router.ResponseAuthFailed(c)
		}

		token := c.Cookies(CookieName(slug))
		claims, err := ParseSessionToken(token, store.Secret)
		if err != nil || claims.Slug != slug {
			return router.ResponseAuthFailed(c)
		}

		// The share must still exist right now, not just at issuance.
		if !store.Exists(slug) {
			return router.ResponseAuthFailed(c)
		}

		c.Locals("share_slug", slug)
		return c.Next()
	}
}

// HasValidSession reports whether the request carries a valid session for
// slug, without writing a response. Page handlers use it to decide
// between serving the viewer and redirecting to PIN entry.
func HasValidSession(c *fiber.Ctx, store *share.Store, slug string) bool {
	token := c.Cookies(CookieName(slug))
	claims, err := ParseSessionToken(token, store.Secret)
	return err == nil && claims.Slug == slug && store.Exists(slug)
}
