// Package admin exposes the owner-facing share management API. Every
// route in here sits behind the admin secret key middleware.
package admin

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/internal/notify"
	"github.com/campass/campass-gateway/internal/share"
	"github.com/campass/campass-gateway/internal/types"
	"github.com/campass/campass-gateway/pkg/env"
	"github.com/campass/campass-gateway/pkg/log"
	"github.com/campass/campass-gateway/pkg/passcode"
	"github.com/campass/campass-gateway/pkg/router"
	"github.com/campass/campass-gateway/pkg/validation"
)

const persistTimeout = 5 * time.Second

// HealthProber reports whether the upstream camera API is reachable.
type HealthProber interface {
	Healthy(ctx context.Context) error
}

type Handler struct {
	store       *share.Store
	gates       *gate.Controller
	persistence *share.Persistence
	cameras     HealthProber
	notify      *notify.Engine
	publicURL   string
	startedAt   time.Time
}

func NewHandler(store *share.Store, gates *gate.Controller, persistence *share.Persistence, cameras HealthProber, engine *notify.Engine) *Handler {
	return &Handler{
		store:       store,
		gates:       gates,
		persistence: persistence,
		cameras:     cameras,
		notify:      engine,
		publicURL:   env.GetEnvStringOrDefault("PUBLIC_BASE_URL", ""),
		startedAt:   time.Now(),
	}
}

// GetShares lists all shares with their live gate state.
func (h *Handler) GetShares(c *fiber.Ctx) error {
	shares := h.store.List()
	views := make([]shareView, 0, len(shares))
	for _, sh := range shares {
		views = append(views, h.view(sh))
	}
	return router.ResponseSuccessWithData(c, "Shares fetched", views)
}

// GetShare returns a single share by slug.
func (h *Handler) GetShare(c *fiber.Ctx) error {
	sh, err := h.store.Get(c.Params("slug"))
	if err != nil {
		return router.ResponseNotFound(c, "Share not found")
	}
	return router.ResponseSuccessWithData(c, "Share fetched", h.view(sh))
}

// CreateShare registers a new share. The slug is derived from the name
// when not given, the passcode is hashed before it is stored, and a
// fresh random signing secret is minted so the new share never honors
// tokens from any previous share.
func (h *Handler) CreateShare(c *fiber.Ctx) error {
	var req types.RequestCreateShare
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Malformed request body")
	}

	slug := req.Slug
	if slug == "" {
		slug = validation.Slugify(req.Name)
	}
	if err := validation.ValidateSlug(slug); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	if !passcode.ValidAuthType(req.AuthType) {
		return router.ResponseBadRequest(c, "Unknown auth type")
	}
	if err := passcode.ValidateShape(req.Passcode, req.AuthType); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	hash, err := passcode.Hash(req.Passcode)
	if err != nil {
		log.Print(c).Error("hash passcode: ", err)
		return router.ResponseInternalError(c, "Could not create share")
	}

	duration := req.SessionDuration
	if duration == "" {
		duration = share.DefaultDuration
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Print(c).Error("mint signing secret: ", err)
		return router.ResponseInternalError(c, "Could not create share")
	}

	now := time.Now().UTC()
	sh := share.Share{
		ID:           uuid.NewString(),
		Slug:         slug,
		Name:         req.Name,
		AuthType:     req.AuthType,
		PasscodeHash: hash,
		Secret:       secret,
		Cameras:      req.Cameras,
		Duration:     duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.Create(sh); err != nil {
		if errors.Is(err, share.ErrExists) {
			return router.ResponseConflict(c, "A share with this slug already exists")
		}
		return router.ResponseBadRequest(c, err.Error())
	}
	if err := h.persist(sh); err != nil {
		log.Print(c).Error("persist share ", slug, ": ", err)
	}

	log.Print(c).Info("share created: ", slug)
	return router.ResponseCreatedWithData(c, "Share created", h.view(sh))
}

// UpdateShare patches a share in place. The slug is immutable: renaming
// means delete-then-create, which rotates the signing secret and kills
// outstanding sessions.
func (h *Handler) UpdateShare(c *fiber.Ctx) error {
	slug := c.Params("slug")
	sh, err := h.store.Get(slug)
	if err != nil {
		return router.ResponseNotFound(c, "Share not found")
	}

	var req types.RequestUpdateShare
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Malformed request body")
	}

	if req.Name != nil {
		sh.Name = *req.Name
	}
	if req.AuthType != nil {
		if !passcode.ValidAuthType(*req.AuthType) {
			return router.ResponseBadRequest(c, "Unknown auth type")
		}
		sh.AuthType = *req.AuthType
	}
	if req.Passcode != nil {
		if err := passcode.ValidateShape(*req.Passcode, sh.AuthType); err != nil {
			return router.ResponseBadRequest(c, err.Error())
		}
		hash, err := passcode.Hash(*req.Passcode)
		if err != nil {
			log.Print(c).Error("hash passcode: ", err)
			return router.ResponseInternalError(c, "Could not update share")
		}
		sh.PasscodeHash = hash
	}
	if req.Cameras != nil {
		sh.Cameras = req.Cameras
	}
	if req.SessionDuration != nil {
		sh.Duration = *req.SessionDuration
	}
	sh.UpdatedAt = time.Now().UTC()

	if err := h.store.Upsert(sh); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	if err := h.persist(sh); err != nil {
		log.Print(c).Error("persist share ", slug, ": ", err)
	}

	log.Print(c).Info("share updated: ", slug)
	return router.ResponseSuccessWithData(c, "Share updated", h.view(sh))
}

// DeleteShare removes a share. Its gate state and any open event
// watches are torn down, and because the signing secret dies with it,
// every session cookie minted for this share stops verifying at once.
func (h *Handler) DeleteShare(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if err := h.store.Delete(slug); err != nil {
		return router.ResponseNotFound(c, "Share not found")
	}
	h.gates.Forget(slug)

	if h.persistence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := h.persistence.Delete(ctx, slug); err != nil {
			log.Print(c).Error("delete persisted share ", slug, ": ", err)
		}
	}

	log.Print(c).Info("share deleted: ", slug)
	return router.ResponseSuccess(c, "Share deleted")
}

// SetEnabled flips a share's gate. The flag lives only in memory, so a
// gateway restart always comes back with every share disabled.
func (h *Handler) SetEnabled(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if !h.store.Exists(slug) {
		return router.ResponseNotFound(c, "Share not found")
	}

	var req types.RequestSetEnabled
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return router.ResponseBadRequest(c, "Body must carry an enabled flag")
	}

	h.gates.Set(slug, *req.Enabled)

	remoteIP, _ := c.Locals("remote_ip").(string)
	event := notify.EventShareDisabled
	if *req.Enabled {
		event = notify.EventShareEnabled
	}
	h.notify.Record(event, slug, "", remoteIP)

	return router.ResponseSuccessWithData(c, "Share gate updated", fiber.Map{
		"slug":    slug,
		"enabled": *req.Enabled,
	})
}

// GetShareQR renders the share's public URL as a PNG QR code, sized for
// showing on a phone screen or printing on a guest card.
func (h *Handler) GetShareQR(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if !h.store.Exists(slug) {
		return router.ResponseNotFound(c, "Share not found")
	}

	base := h.publicURL
	if base == "" {
		base = c.BaseURL()
	}
	png, err := qrcode.Encode(base+"/"+slug+"/", qrcode.Medium, 512)
	if err != nil {
		log.Print(c).Error("encode qr for ", slug, ": ", err)
		return router.ResponseInternalError(c, "Could not render QR code")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Status(fiber.StatusOK).Send(png)
}

// GetStats reports gateway-level counters.
func (h *Handler) GetStats(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Stats fetched", fiber.Map{
		"shares":         h.store.Count(),
		"enabled_shares": h.gates.CountEnabled(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// GetHealth checks the gateway's dependencies: the share database when
// one is configured, and the upstream camera API.
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	databaseStatus := "not configured"
	healthy := true
	if h.persistence != nil {
		if err := h.persistence.Ping(ctx); err != nil {
			databaseStatus = err.Error()
			healthy = false
		} else {
			databaseStatus = "ok"
		}
	}

	cameraStatus := "ok"
	if err := h.cameras.Healthy(ctx); err != nil {
		cameraStatus = err.Error()
		healthy = false
	}

	data := fiber.Map{
		"database":   databaseStatus,
		"camera_api": cameraStatus,
	}
	if !healthy {
		return router.ResponseSuccessWithData(c, "Gateway degraded", data)
	}
	return router.ResponseSuccessWithData(c, "Gateway healthy", data)
}

func (h *Handler) persist(sh share.Share) error {
	if h.persistence == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return h.persistence.Upsert(ctx, sh)
}

type shareView struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	AuthType        string    `json:"auth_type"`
	Cameras         []string  `json:"cameras"`
	SessionDuration string    `json:"session_duration"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (h *Handler) view(sh share.Share) shareView {
	return shareView{
		ID:              sh.ID,
		Slug:            sh.Slug,
		Name:            sh.Name,
		AuthType:        sh.AuthType,
		Cameras:         sh.Cameras,
		SessionDuration: sh.Duration,
		Enabled:         h.gates.Enabled(sh.Slug),
		CreatedAt:       sh.CreatedAt,
		UpdatedAt:       sh.UpdatedAt,
	}
}
