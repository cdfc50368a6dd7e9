// Package stream relays live camera feeds to authenticated viewers. It
// prefers the platform's native multiplexed MJPEG stream and falls back
// to snapshot polling when streaming is unavailable, emitting its own
// multipart response either way.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/campass/campass-gateway/internal/gate"
	"github.com/campass/campass-gateway/pkg/camera"
	"github.com/campass/campass-gateway/pkg/env"
	"github.com/campass/campass-gateway/pkg/log"
)

// FallbackContentType is the multipart framing used by the polling
// fallback. Consumable by any standard MJPEG viewer.
const FallbackContentType = "multipart/x-mixed-replace; boundary=frame"

const relayBufferSize = 32 * 1024

// Proxy opens streams on behalf of verified sessions. Preconditions
// (session validity, camera whitelist, gate state) are the caller's job;
// the proxy re-checks only the gate, continuously, so a disable tears the
// stream down mid-flight.
type Proxy struct {
	cameras      camera.Provider
	gates        *gate.Controller
	pollInterval time.Duration
}

// NewProxy reads STREAM_POLL_INTERVAL (default 500ms, clamped to
// 100ms..5s) for the snapshot fallback cadence.
func NewProxy(cameras camera.Provider, gates *gate.Controller) *Proxy {
	interval := env.GetEnvDurationOrDefault("STREAM_POLL_INTERVAL", 500*time.Millisecond)
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if interval > 5*time.Second {
		interval = 5 * time.Second
	}
	return &Proxy{
		cameras:      cameras,
		gates:        gates,
		pollInterval: interval,
	}
}

// Stream is one open relay. ContentType must be written to the response
// header before Run starts pushing body bytes.
type Stream struct {
	contentType string
	run         func(w *bufio.Writer)
}

func (s *Stream) ContentType() string {
	return s.contentType
}

// Run pushes frames until the client disconnects, the share is disabled,
// or the upstream closes - whichever happens first. It blocks for the
// life of the stream and always releases its camera resources on return.
func (s *Stream) Run(w *bufio.Writer) {
	s.run(w)
}

// Open negotiates the delivery mode for one viewer. A working native
// stream wins; any failure to start it downgrades to polling instead of
// surfacing an error to the client.
func (p *Proxy) Open(ctx context.Context, slug, cameraID string) *Stream {
	sctx, cancel := context.WithCancel(ctx)

	upstream, contentType, err := p.cameras.OpenStream(sctx, cameraID)
	if err == nil {
		return &Stream{
			contentType: contentType,
			run: func(w *bufio.Writer) {
				defer cancel()
				p.relay(sctx, cancel, w, upstream, slug, cameraID)
			},
		}
	}

	log.Stream(slug, cameraID).WithError(err).Info("native stream unavailable, falling back to snapshot polling")
	return &Stream{
		contentType: FallbackContentType,
		run: func(w *bufio.Writer) {
			defer cancel()
			p.poll(sctx, cancel, w, slug, cameraID)
		},
	}
}

// watchGate cancels the stream context the moment the share is switched
// off (or deleted). Returns a release func for the gate subscription.
func (p *Proxy) watchGate(ctx context.Context, cancel context.CancelFunc, slug string) func() {
	changes, unwatch := p.gates.Watch(slug)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case enabled := <-changes:
				if !enabled {
					cancel()
					return
				}
			}
		}
	}()

	return func() {
		unwatch()
		cancel()
		<-done
	}
}

// relay copies the native multiplexed stream through to the client,
// preserving arrival order. The upstream request shares the stream
// context, so cancellation aborts a blocked read promptly.
func (p *Proxy) relay(ctx context.Context, cancel context.CancelFunc, w *bufio.Writer, upstream io.ReadCloser, slug, cameraID string) {
	defer upstream.Close()
	release := p.watchGate(ctx, cancel, slug)
	defer release()

	if !p.gates.Enabled(slug) {
		return
	}

	buf := make([]byte, relayBufferSize)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return // client disconnected
			}
			if werr := w.Flush(); werr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Stream(slug, cameraID).WithError(err).Warn("native stream ended")
			}
			return
		}
	}
}

// poll fetches one snapshot per tick and writes it as a multipart frame.
// A transient fetch failure skips the tick; it never kills the stream.
func (p *Proxy) poll(ctx context.Context, cancel context.CancelFunc, w *bufio.Writer, slug, cameraID string) {
	release := p.watchGate(ctx, cancel, slug)
	defer release()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil || !p.gates.Enabled(slug) {
			return
		}

		frame, err := p.cameras.Snapshot(ctx, cameraID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Stream(slug, cameraID).WithError(err).Warn("snapshot failed, retrying next tick")
		} else if err := writeFrame(w, frame); err != nil {
			return // client disconnected
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func writeFrame(w *bufio.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
