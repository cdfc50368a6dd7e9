// Package notify records share access events. Every event lands in the
// structured log; when a webhook target is configured, events are also
// delivered by a bounded worker pool with retries, so a slow receiver
// never blocks request handling.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campass/campass-gateway/pkg/env"
	"github.com/campass/campass-gateway/pkg/log"
)

// Event types mirrored into the platform's activity log.
const (
	EventAuthSuccess   = "auth_success"
	EventAuthFailure   = "auth_failure"
	EventCameraView    = "camera_view"
	EventShareEnabled  = "share_enabled"
	EventShareDisabled = "share_disabled"
)

// Event is one access event on a share.
type Event struct {
	Type      string    `json:"type"`
	Slug      string    `json:"slug"`
	CameraID  string    `json:"camera_id,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine fans events out to the configured webhook.
type Engine struct {
	httpClient *http.Client
	queue      chan Event
	workers    int
	retryLimit int
	webhookURL string
	secret     string
	enabled    bool
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewEngine reads NOTIFY_WEBHOOK_URL (unset disables delivery; events are
// still logged), NOTIFY_WEBHOOK_SECRET, NOTIFY_WORKERS (default 2) and
// NOTIFY_RETRY_LIMIT (default 3).
func NewEngine() *Engine {
	webhookURL := env.GetEnvStringOrDefault("NOTIFY_WEBHOOK_URL", "")
	secret := env.GetEnvStringOrDefault("NOTIFY_WEBHOOK_SECRET", "")
	workers := env.GetEnvIntOrDefault("NOTIFY_WORKERS", 2)
	if workers <= 0 {
		workers = 2
	}
	retryLimit := env.GetEnvIntOrDefault("NOTIFY_RETRY_LIMIT", 3)
	if retryLimit <= 0 {
		retryLimit = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan Event, 256),
		workers:    workers,
		retryLimit: retryLimit,
		webhookURL: webhookURL,
		secret:     secret,
		enabled:    webhookURL != "",
		ctx:        ctx,
		cancel:     cancel,
	}

	if engine.enabled {
		for i := 0; i < engine.workers; i++ {
			engine.wg.Add(1)
			go engine.worker()
		}
	}

	return engine
}

// Shutdown stops the workers and waits for in-flight deliveries. The
// queue channel is never closed: Record may still be running on another
// goroutine, and a send must degrade to a drop, not a panic.
func (e *Engine) Shutdown() {
	e.cancel()
	e.wg.Wait()
}

// Record logs the event and queues webhook delivery. The queue is
// best-effort: when full, the webhook copy is dropped (the log copy is
// not).
func (e *Engine) Record(eventType, slug, cameraID, remoteIP string) {
	event := Event{
		Type:      eventType,
		Slug:      slug,
		CameraID:  cameraID,
		RemoteIP:  remoteIP,
		Timestamp: time.Now().UTC(),
	}

	entry := log.Print(nil).WithFields(logrus.Fields{
		"event": event.Type,
		"slug":  event.Slug,
	})
	if event.CameraID != "" {
		entry = entry.WithField("camera", event.CameraID)
	}
	if event.RemoteIP != "" {
		entry = entry.WithField("remote_ip", event.RemoteIP)
	}
	entry.Info("share access event")

	if !e.enabled || e.ctx.Err() != nil {
		return
	}
	select {
	case e.queue <- event:
	default:
		log.Print(nil).Warn("notify queue full, dropping webhook delivery for " + event.Type)
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case event := <-e.queue:
			e.deliver(event)
		}
	}
}

func (e *Engine) deliver(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Print(nil).WithError(err).Error("notify: marshal event")
		return
	}

	for attempt := 1; attempt <= e.retryLimit; attempt++ {
		if e.ctx.Err() != nil {
			return
		}
		if err := e.post(body); err == nil {
			return
		} else if attempt == e.retryLimit {
			log.Print(nil).WithError(err).Warn("notify: webhook delivery failed, giving up")
			return
		}

		// Exponential backoff between attempts.
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (e *Engine) post(body []byte) error {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, e.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.secret != "" {
		mac := hmac.New(sha256.New, []byte(e.secret))
		mac.Write(body)
		req.Header.Set("X-CamPass-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &deliveryError{status: resp.StatusCode}
	}
	return nil
}

type deliveryError struct {
	status int
}

func (d *deliveryError) Error() string {
	return http.StatusText(d.status)
}
