package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sunshineplan/imgconv"
	"golang.org/x/sync/singleflight"

	"github.com/campass/campass-gateway/pkg/env"
)

// HTTPProvider talks to the home-automation platform's REST API:
// GET /api/camera_proxy_stream/<id> for MJPEG, GET /api/camera_proxy/<id>
// for stills, GET /api/states/<id> for the friendly name. Authentication
// is a long-lived bearer token.
type HTTPProvider struct {
	baseURL      string
	token        string
	snapshotHTTP *http.Client
	streamHTTP   *http.Client
	group        singleflight.Group
}

// NewHTTPProvider reads CAMERA_API_BASE_URL (required) and
// CAMERA_API_TOKEN (required) plus CAMERA_SNAPSHOT_TIMEOUT (default 10s).
func NewHTTPProvider() *HTTPProvider {
	baseURL := strings.TrimRight(env.MustGetEnvString("CAMERA_API_BASE_URL"), "/")
	token := env.MustGetEnvString("CAMERA_API_TOKEN")
	timeout := env.GetEnvDurationOrDefault("CAMERA_SNAPSHOT_TIMEOUT", 10*time.Second)

	return &HTTPProvider{
		baseURL:      baseURL,
		token:        token,
		snapshotHTTP: &http.Client{Timeout: timeout},
		// Stream responses stay open for the life of the viewer; the
		// per-request context handles cancellation instead of a client
		// deadline.
		streamHTTP: &http.Client{},
	}
}

func (p *HTTPProvider) request(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	return req, nil
}

// OpenStream starts the platform's native MJPEG proxy for the camera.
func (p *HTTPProvider) OpenStream(ctx context.Context, cameraID string) (io.ReadCloser, string, error) {
	req, err := p.request(ctx, "/api/camera_proxy_stream/"+url.PathEscape(cameraID))
	if err != nil {
		return nil, "", err
	}

	resp, err := p.streamHTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "multipart/x-mixed-replace; boundary=frame"
	}
	return resp.Body, contentType, nil
}

// Snapshot fetches one still frame. Concurrent viewers of the same camera
// share a single upstream fetch per tick, and non-JPEG stills are
// converted so the multipart fallback always emits JPEG parts.
func (p *HTTPProvider) Snapshot(ctx context.Context, cameraID string) ([]byte, error) {
	v, err, _ := p.group.Do("snapshot:"+cameraID, func() (interface{}, error) {
		return p.fetchSnapshot(ctx, cameraID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (p *HTTPProvider) fetchSnapshot(ctx context.Context, cameraID string) ([]byte, error) {
	req, err := p.request(ctx, "/api/camera_proxy/"+url.PathEscape(cameraID))
	if err != nil {
		return nil, err
	}

	resp, err := p.snapshotHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrUnavailable)
	}
	return ensureJPEG(data)
}

// ensureJPEG passes JPEG bytes through untouched and re-encodes anything
// else (some platforms serve PNG stills).
func ensureJPEG(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0xff && data[1] == 0xd8 {
		return data, nil
	}

	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.JPEG}); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Name resolves the camera's friendly name from the platform's state
// registry, falling back to the raw identifier.
func (p *HTTPProvider) Name(ctx context.Context, cameraID string) (string, error) {
	req, err := p.request(ctx, "/api/states/"+url.PathEscape(cameraID))
	if err != nil {
		return cameraID, err
	}

	resp, err := p.snapshotHTTP.Do(req)
	if err != nil {
		return cameraID, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cameraID, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var state struct {
		Attributes struct {
			FriendlyName string `json:"friendly_name"`
		} `json:"attributes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return cameraID, err
	}
	if state.Attributes.FriendlyName == "" {
		return cameraID, nil
	}
	return state.Attributes.FriendlyName, nil
}

// Healthy probes the platform API root, for the admin health endpoint and
// the periodic health routine.
func (p *HTTPProvider) Healthy(ctx context.Context) error {
	req, err := p.request(ctx, "/api/")
	if err != nil {
		return err
	}
	resp, err := p.snapshotHTTP.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return nil
}
