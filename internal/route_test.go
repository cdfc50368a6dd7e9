package internal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	ctlAdmin "github.com/campass/campass-gateway/internal/admin"
	ctlAuth "github.com/campass/campass-gateway/internal/auth"
	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/internal/notify"
	ctlPages "github.com/campass/campass-gateway/internal/pages"
	"github.com/campass/campass-gateway/internal/share"
	ctlStatus "github.com/campass/campass-gateway/internal/status"
	ctlStream "github.com/campass/campass-gateway/internal/stream"
	pkgAuth "github.com/campass/campass-gateway/pkg/auth"
	"github.com/campass/campass-gateway/pkg/router"
)

// fakeCameras serves a short finite native stream so responses complete
// inside app.Test.
type fakeCameras struct{}

func (fakeCameras) OpenStream(ctx context.Context, cameraID string) (io.ReadCloser, string, error) {
	body := io.NopCloser(strings.NewReader("--frame\r\nContent-Type: image/jpeg\r\n\r\nJPEGDATA\r\n"))
	return body, "multipart/x-mixed-replace; boundary=frame", nil
}

func (fakeCameras) Snapshot(ctx context.Context, cameraID string) ([]byte, error) {
	return []byte("JPEGDATA"), nil
}

func (fakeCameras) Name(ctx context.Context, cameraID string) (string, error) {
	if cameraID == "camera.front_door" {
		return "Front Door", nil
	}
	return cameraID, nil
}

func (fakeCameras) Healthy(ctx context.Context) error { return nil }

func newTestApp(t *testing.T, middleware ...fiber.Handler) (*fiber.App, *gate.Controller, *share.Store) {
	t.Helper()

	pkgAuth.AdminSecretKey = "test-admin-secret"

	store := share.NewStore()
	gates := gate.NewController()
	cameras := fakeCameras{}
	engine := notify.NewEngine()
	t.Cleanup(engine.Shutdown)
	throttle := pkgAuth.NewThrottle()
	proxy := ctlStream.NewProxy(cameras, gates)

	app := fiber.New(fiber.Config{
		ErrorHandler:  router.HttpErrorHandler,
		StrictRouting: true,
	})
	app.Use(router.HttpRequestID())
	for _, m := range middleware {
		app.Use(m)
	}
	app.Use(router.HttpRealIP())

	Routes(app, Controllers{
		Auth:   ctlAuth.NewHandler(store, throttle, engine),
		Admin:  ctlAdmin.NewHandler(store, gates, nil, cameras, engine),
		Pages:  ctlPages.NewHandler(store),
		Status: ctlStatus.NewHandler(store, gates, cameras),
		Stream: ctlStream.NewHandler(store, gates, proxy, engine),
	}, pkgAuth.SessionAuth(store))

	return app, gates, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, mutate func(*http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func asAdmin(req *http.Request) {
	req.Header.Set("X-Admin-Secret", "test-admin-secret")
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return data
}

func createGuestShare(t *testing.T, app *fiber.App) {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPost, "/admin/shares",
		`{"name":"Weekend guests","slug":"guest","auth_type":"pin4","passcode":"1234","cameras":["camera.front_door"]}`,
		asAdmin)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create share: got status %d", resp.StatusCode)
	}
	readBody(t, resp)
}

func authenticate(t *testing.T, app *fiber.App, slug, passcode string) *http.Cookie {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPost, "/"+slug+"/api/auth", `{"passcode":"`+passcode+`"}`, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("authenticate: got status %d", resp.StatusCode)
	}
	readBody(t, resp)
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "campass_"+slug {
			return cookie
		}
	}
	t.Fatal("authenticate: no session cookie in response")
	return nil
}

func TestAdminRequiresSecret(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodGet, "/admin/shares", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("no secret: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)

	resp = doJSON(t, app, fiber.MethodGet, "/admin/shares", "", func(req *http.Request) {
		req.Header.Set("X-Admin-Secret", "wrong")
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("wrong secret: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)
}

func TestGuestFlow(t *testing.T) {
	app, _, _ := newTestApp(t)
	createGuestShare(t, app)

	// Bare slug redirects to the slash form.
	resp := doJSON(t, app, fiber.MethodGet, "/guest", "", nil)
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("bare slug: got status %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/guest/" {
		t.Fatalf("bare slug: got location %q, want /guest/", loc)
	}
	readBody(t, resp)

	// PIN page renders without a session.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("pin page: got status %d", resp.StatusCode)
	}
	if !bytes.Contains(readBody(t, resp), []byte(`"guest"`)) {
		t.Fatal("pin page does not carry the slug")
	}

	// Viewer without a session bounces back to the PIN page.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/viewer", "", nil)
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("viewer without session: got status %d, want 302", resp.StatusCode)
	}
	readBody(t, resp)

	// Stream without a session fails like a bad login.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/stream/camera.front_door", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("stream without session: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)

	cookie := authenticate(t, app, "guest", "1234")

	// Viewer now renders.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/viewer", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("viewer with session: got status %d", resp.StatusCode)
	}
	readBody(t, resp)

	// Share starts disabled: stream answers 503.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/stream/camera.front_door", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("stream while disabled: got status %d, want 503", resp.StatusCode)
	}
	readBody(t, resp)

	// Owner enables the share.
	resp = doJSON(t, app, fiber.MethodPost, "/admin/shares/guest/enabled", `{"enabled":true}`, asAdmin)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("enable share: got status %d", resp.StatusCode)
	}
	readBody(t, resp)

	// Status reflects the gate and resolves camera names.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/status", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: got status %d", resp.StatusCode)
	}
	status := readBody(t, resp)
	if !bytes.Contains(status, []byte(`"enabled":true`)) {
		t.Fatalf("status does not report enabled: %s", status)
	}
	if !bytes.Contains(status, []byte("Front Door")) {
		t.Fatalf("status does not carry the camera name: %s", status)
	}

	// Stream now relays frames with the upstream content type.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/stream/camera.front_door", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("stream while enabled: got status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "multipart/x-mixed-replace") {
		t.Fatalf("stream content type: got %q", ct)
	}
	if !bytes.Contains(readBody(t, resp), []byte("JPEGDATA")) {
		t.Fatal("stream body does not carry frame data")
	}

	// A camera outside the whitelist always fails, session or not.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/stream/camera.bedroom", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("non-whitelisted camera: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)

	// Disabling flips streams back to 503.
	resp = doJSON(t, app, fiber.MethodPost, "/admin/shares/guest/enabled", `{"enabled":false}`, asAdmin)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("disable share: got status %d", resp.StatusCode)
	}
	readBody(t, resp)

	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/stream/camera.front_door", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("stream after disable: got status %d, want 503", resp.StatusCode)
	}
	readBody(t, resp)
}

func TestAuthFailureIndistinguishable(t *testing.T) {
	app, _, _ := newTestApp(t)
	createGuestShare(t, app)

	wrongPass := doJSON(t, app, fiber.MethodPost, "/guest/api/auth", `{"passcode":"9999"}`, nil)
	unknownSlug := doJSON(t, app, fiber.MethodPost, "/no-such-share/api/auth", `{"passcode":"9999"}`, nil)

	if wrongPass.StatusCode != fiber.StatusUnauthorized || unknownSlug.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("got statuses %d and %d, want 401 for both", wrongPass.StatusCode, unknownSlug.StatusCode)
	}
	bodyA := readBody(t, wrongPass)
	bodyB := readBody(t, unknownSlug)
	if !bytes.Equal(bodyA, bodyB) {
		t.Fatalf("failure bodies differ: %s vs %s", bodyA, bodyB)
	}
}

func TestDeleteShareKillsSessions(t *testing.T) {
	app, _, _ := newTestApp(t)
	createGuestShare(t, app)
	cookie := authenticate(t, app, "guest", "1234")

	resp := doJSON(t, app, fiber.MethodDelete, "/admin/shares/guest", "", asAdmin)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete share: got status %d", resp.StatusCode)
	}
	readBody(t, resp)

	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/status", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status after delete: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)

	// Recreating the share with the same slug mints a fresh secret, so
	// the old cookie still fails.
	createGuestShare(t, app)
	resp = doJSON(t, app, fiber.MethodGet, "/guest/api/status", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status with stale cookie: got status %d, want 401", resp.StatusCode)
	}
	readBody(t, resp)
}

func TestCacheNeverServesSessionPages(t *testing.T) {
	app, _, _ := newTestApp(t, router.HttpCacheInMemory(60))
	createGuestShare(t, app)
	cookie := authenticate(t, app, "guest", "1234")

	// An authenticated guest renders the viewer.
	resp := doJSON(t, app, fiber.MethodGet, "/guest/viewer", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("viewer with session: got status %d", resp.StatusCode)
	}
	readBody(t, resp)

	// The same path without a session must still bounce to PIN entry:
	// the rendered page must not have been cached by path.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/viewer", "", nil)
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("viewer without session after authenticated render: got status %d, want 302", resp.StatusCode)
	}
	readBody(t, resp)

	// And the other direction: an anonymous redirect must not be
	// replayed to a guest holding a valid session.
	resp = doJSON(t, app, fiber.MethodGet, "/guest/viewer", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("viewer with session after anonymous visit: got status %d, want 200", resp.StatusCode)
	}
	readBody(t, resp)

	// The PIN page is session-sensitive too (it forwards live sessions).
	resp = doJSON(t, app, fiber.MethodGet, "/guest/", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("pin page anonymous: got status %d", resp.StatusCode)
	}
	readBody(t, resp)
	resp = doJSON(t, app, fiber.MethodGet, "/guest/", "", func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("pin page with session after anonymous render: got status %d, want 302", resp.StatusCode)
	}
	readBody(t, resp)
}

func TestCreateShareValidation(t *testing.T) {
	app, _, _ := newTestApp(t)
	createGuestShare(t, app)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate slug", `{"name":"Dup","slug":"guest","auth_type":"pin4","passcode":"1234","cameras":["camera.a"]}`, fiber.StatusConflict},
		{"bad passcode shape", `{"name":"X","slug":"x","auth_type":"pin4","passcode":"12","cameras":["camera.a"]}`, fiber.StatusBadRequest},
		{"unknown auth type", `{"name":"X","slug":"x","auth_type":"retina","passcode":"1234","cameras":["camera.a"]}`, fiber.StatusBadRequest},
		{"no cameras", `{"name":"X","slug":"x","auth_type":"pin4","passcode":"1234","cameras":[]}`, fiber.StatusBadRequest},
		{"bad slug", `{"name":"X","slug":"Not A Slug!","auth_type":"pin4","passcode":"1234","cameras":["camera.a"]}`, fiber.StatusBadRequest},
		{"reserved slug", `{"name":"X","slug":"admin","auth_type":"pin4","passcode":"1234","cameras":["camera.a"]}`, fiber.StatusBadRequest},
	}
	for _, tc := range tests {
		resp := doJSON(t, app, fiber.MethodPost, "/admin/shares", tc.body, asAdmin)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: got status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
		readBody(t, resp)
	}
}
