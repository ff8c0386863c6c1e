package telemetry

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// WebhookSink posts run lifecycle notifications as JSON to a single URL.
// When a secret is configured, each request carries an HMAC-SHA256 signature
// of the body in X-Panosync-Signature so receivers can authenticate it.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSink creates a sink posting to url. secret may be empty.
func NewWebhookSink(url, secret string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Kind      string `json:"kind"`
	RunID     string `json:"runId"`
	DryRun    bool   `json:"dryRun"`
	Timestamp string `json:"timestamp"`

	// event_failed only
	Title    string `json:"title,omitempty"`
	Identity string `json:"identity,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// run_completed only
	Read       int    `json:"read,omitempty"`
	Upserts    int    `json:"upserts,omitempty"`
	Unchanged  int    `json:"unchanged,omitempty"`
	Errors     int    `json:"errors,omitempty"`
	Deleted    int    `json:"deleted,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Result     string `json:"result,omitempty"`
}

func (s *WebhookSink) RunStarted(ctx context.Context, run domain.RunContext) {
	s.post(ctx, webhookPayload{
		Kind:      "run_started",
		RunID:     run.RunID,
		DryRun:    run.DryRun,
		Timestamp: run.StartedUTC.Format(time.RFC3339),
	})
}

func (s *WebhookSink) EventFailed(ctx context.Context, runID, title, identity, reason string) {
	s.post(ctx, webhookPayload{
		Kind:      "event_failed",
		RunID:     runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Title:     title,
		Identity:  identity,
		Reason:    reason,
	})
}

func (s *WebhookSink) RunCompleted(ctx context.Context, run domain.RunContext, stats domain.RunStats, duration time.Duration) {
	result := "ok"
	if stats.Errors > 0 {
		result = "errors"
	}
	s.post(ctx, webhookPayload{
		Kind:       "run_completed",
		RunID:      run.RunID,
		DryRun:     run.DryRun,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Read:       stats.Read,
		Upserts:    stats.Upserts,
		Unchanged:  stats.Unchanged,
		Errors:     stats.Errors,
		Deleted:    stats.Deleted,
		DurationMs: duration.Milliseconds(),
		Result:     result,
	})
}

// post delivers one notification. Failures are logged and swallowed.
func (s *WebhookSink) post(ctx context.Context, payload webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telemetry: marshal %s payload: %v", payload.Kind, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("telemetry: build %s request: %v", payload.Kind, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Panosync-Signature", computeSignature(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("telemetry: deliver %s: %v", payload.Kind, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("telemetry: deliver %s: status %d", payload.Kind, resp.StatusCode)
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets receivers authenticate an incoming notification.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ Sink = (*WebhookSink)(nil)
