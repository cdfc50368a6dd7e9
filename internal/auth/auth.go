// Package auth handles passcode entry for shares.
package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campass/campass-gateway/internal/notify"
	"github.com/campass/campass-gateway/internal/share"
	"github.com/campass/campass-gateway/internal/types"
	pkgAuth "github.com/campass/campass-gateway/pkg/auth"
	"github.com/campass/campass-gateway/pkg/log"
	"github.com/campass/campass-gateway/pkg/passcode"
	"github.com/campass/campass-gateway/pkg/router"
)

type Handler struct {
	store    *share.Store
	throttle *pkgAuth.Throttle
	notify   *notify.Engine

	// decoyHash absorbs verification work for unknown slugs so their
	// response timing matches a wrong passcode on a real share.
	decoyHash string
}

func NewHandler(store *share.Store, throttle *pkgAuth.Throttle, engine *notify.Engine) *Handler {
	decoy, err := passcode.Hash("campass-decoy")
	if err != nil {
		// Hashing a constant only fails if the system RNG is broken.
		panic("auth: decoy hash: " + err.Error())
	}
	return &Handler{
		store:     store,
		throttle:  throttle,
		notify:    engine,
		decoyHash: decoy,
	}
}

func remoteIP(c *fiber.Ctx) string {
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			return ip
		}
	}
	return c.IP()
}

// Authenticate verifies the submitted passcode for :slug and, on success,
// sets the session cookie. Wrong passcode and unknown slug answer with
// the same bytes; the error never says which part was wrong.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	slug := c.Params("slug")
	ip := remoteIP(c)

	var req types.RequestAuth
	if err := c.BodyParser(&req); err != nil || req.Passcode == "" {
		return router.ResponseAuthFailed(c)
	}

	if !h.throttle.Allow(slug + "|" + ip) {
		log.Print(c).Warn("passcode attempt throttled for slug " + slug)
		h.notify.Record(notify.EventAuthFailure, slug, "", ip)
		return router.ResponseAuthFailed(c)
	}

	sh, err := h.store.Get(slug)
	if err != nil {
		// Same work, same answer as a wrong passcode on a real share.
		_, _ = passcode.Verify(req.Passcode, h.decoyHash)
		h.notify.Record(notify.EventAuthFailure, slug, "", ip)
		return router.ResponseAuthFailed(c)
	}

	ok, err := passcode.Verify(req.Passcode, sh.PasscodeHash)
	if err != nil {
		log.Print(c).WithError(err).Error("stored passcode hash unreadable for slug " + slug)
		return router.ResponseAuthFailed(c)
	}
	if !ok {
		h.notify.Record(notify.EventAuthFailure, slug, "", ip)
		return router.ResponseAuthFailed(c)
	}

	token, err := pkgAuth.IssueSessionToken(sh)
	if err != nil {
		return router.ResponseInternalError(c, "Failed to issue session token")
	}

	c.Cookie(pkgAuth.SessionCookie(slug, token, sh, c.Secure()))
	h.notify.Record(notify.EventAuthSuccess, slug, "", ip)
	return router.ResponseAuthSuccess(c)
}
