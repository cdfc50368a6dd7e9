package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/pkg/camera"
)

// fakeProvider scripts the camera collaborator.
type fakeProvider struct {
	mu        sync.Mutex
	streamErr error
	streamSrc func(ctx context.Context) io.ReadCloser
	snapshots [][]byte
	snapErrs  []error
	calls     int
}

func (f *fakeProvider) OpenStream(ctx context.Context, cameraID string) (io.ReadCloser, string, error) {
	if f.streamErr != nil {
		return nil, "", f.streamErr
	}
	return f.streamSrc(ctx), "multipart/x-mixed-replace; boundary=upstream", nil
}

func (f *fakeProvider) Snapshot(ctx context.Context, cameraID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.snapErrs) && f.snapErrs[i] != nil {
		return nil, f.snapErrs[i]
	}
	if len(f.snapshots) == 0 {
		return nil, camera.ErrUnavailable
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	return f.snapshots[i], nil
}

func (f *fakeProvider) Name(ctx context.Context, cameraID string) (string, error) {
	return cameraID, nil
}

func (f *fakeProvider) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ctxReader blocks until data is pushed or the context dies, mimicking an
// HTTP response body tied to the request context.
type ctxReader struct {
	ctx  context.Context
	data chan []byte
}

func (r *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	case chunk, ok := <-r.data:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	}
}

func (r *ctxReader) Close() error { return nil }

func newProxy(t *testing.T, cameras camera.Provider, gates *gate.Controller) *Proxy {
	t.Helper()
	t.Setenv("STREAM_POLL_INTERVAL", "100ms")
	return NewProxy(cameras, gates)
}

func runStream(s *Stream, w io.Writer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(bufio.NewWriter(w))
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}, within time.Duration, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(within):
		t.Fatalf("%s did not finish within %v", what, within)
	}
}

func TestFallbackEmitsMultipartFrames(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	frameA := []byte("jpeg-frame-a")
	frameB := []byte("jpeg-frame-b")
	cams := &fakeProvider{
		streamErr: camera.ErrUnavailable,
		snapshots: [][]byte{frameA, frameB},
	}
	p := newProxy(t, cams, gates)

	ctx, cancel := context.WithCancel(context.Background())
	s := p.Open(ctx, "guest", "camera.front")
	if s.ContentType() != FallbackContentType {
		t.Fatalf("ContentType = %q, want fallback", s.ContentType())
	}

	var buf bytes.Buffer
	done := runStream(s, &buf)

	for cams.snapshotCalls() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	waitDone(t, done, 2*time.Second, "cancelled poll stream")

	out := buf.String()
	ia := strings.Index(out, "jpeg-frame-a")
	ib := strings.Index(out, "jpeg-frame-b")
	if ia < 0 || ib < 0 {
		t.Fatalf("frames missing from output: %q", out)
	}
	if ia > ib {
		t.Fatalf("frames out of arrival order")
	}
	if !strings.Contains(out, "--frame\r\nContent-Type: image/jpeg\r\n") {
		t.Fatalf("multipart framing missing: %q", out)
	}
}

// TestPollSurvivesTransientFailure: a failed snapshot skips the tick and
// the stream keeps going.
func TestPollSurvivesTransientFailure(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	frame := []byte("jpeg-frame")
	cams := &fakeProvider{
		streamErr: camera.ErrUnavailable,
		snapshots: [][]byte{frame, frame, frame},
		snapErrs:  []error{nil, camera.ErrUnavailable, nil},
	}
	p := newProxy(t, cams, gates)

	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	done := runStream(p.Open(ctx, "guest", "camera.front"), &buf)

	for cams.snapshotCalls() < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	waitDone(t, done, 2*time.Second, "poll stream")

	if got := strings.Count(buf.String(), "--frame\r\n"); got < 2 {
		t.Fatalf("expected at least 2 frames despite transient failure, got %d", got)
	}
}

// TestDisableStopsPolling: flipping the gate off ends the stream within
// one polling tick.
func TestDisableStopsPolling(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	cams := &fakeProvider{
		streamErr: camera.ErrUnavailable,
		snapshots: [][]byte{[]byte("jpeg-frame")},
	}
	p := newProxy(t, cams, gates)

	var buf bytes.Buffer
	done := runStream(p.Open(context.Background(), "guest", "camera.front"), &buf)

	for cams.snapshotCalls() < 1 {
		time.Sleep(10 * time.Millisecond)
	}
	gates.Set("guest", false)
	waitDone(t, done, time.Second, "disabled poll stream")
}

func TestRelayPassesBytesThrough(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	payload := "--upstream\r\nContent-Type: image/jpeg\r\n\r\nframe-bytes\r\n"
	cams := &fakeProvider{
		streamSrc: func(ctx context.Context) io.ReadCloser {
			return io.NopCloser(strings.NewReader(payload))
		},
	}
	p := newProxy(t, cams, gates)

	s := p.Open(context.Background(), "guest", "camera.front")
	if !strings.Contains(s.ContentType(), "boundary=upstream") {
		t.Fatalf("relay must pass the upstream content type through, got %q", s.ContentType())
	}

	var buf bytes.Buffer
	done := runStream(s, &buf)
	waitDone(t, done, 2*time.Second, "relay at upstream EOF")

	if buf.String() != payload {
		t.Fatalf("relay altered the byte stream:\n got %q\nwant %q", buf.String(), payload)
	}
}

// TestDisableStopsRelay: the gate watch cancels the upstream read, so a
// blocked relay ends promptly on disable.
func TestDisableStopsRelay(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	cams := &fakeProvider{
		streamSrc: func(ctx context.Context) io.ReadCloser {
			return &ctxReader{ctx: ctx, data: make(chan []byte)}
		},
	}
	p := newProxy(t, cams, gates)

	var buf bytes.Buffer
	done := runStream(p.Open(context.Background(), "guest", "camera.front"), &buf)

	time.Sleep(50 * time.Millisecond)
	gates.Set("guest", false)
	waitDone(t, done, time.Second, "disabled relay")
}

// errWriter simulates a client that goes away mid-stream.
type errWriter struct {
	n int
}

func (w *errWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	if w.n > 0 {
		return 0, errors.New("client disconnected")
	}
	return len(p), nil
}

func TestClientDisconnectStopsPolling(t *testing.T) {
	gates := gate.NewController()
	gates.Set("guest", true)

	cams := &fakeProvider{
		streamErr: camera.ErrUnavailable,
		snapshots: [][]byte{[]byte("jpeg-frame")},
	}
	p := newProxy(t, cams, gates)

	done := runStream(p.Open(context.Background(), "guest", "camera.front"), &errWriter{})
	waitDone(t, done, 2*time.Second, "stream after client disconnect")
}
