// Package webhook posts signed run notifications to an external endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/pricecrawl/models"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunCanceled  = "run.canceled"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Pricecrawl-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string             `json:"type"`
	RunID     string             `json:"run_id"`
	Timestamp int64              `json:"timestamp"`
	Summary   *models.RunSummary `json:"summary"`
}

// RunEvent builds the event announcing the end of a run.
func RunEvent(summary *models.RunSummary) *Event {
	typ := EventRunCompleted
	switch summary.Status {
	case models.RunCanceled:
		typ = EventRunCanceled
	case models.RunFailed:
		typ = EventRunFailed
	}
	return &Event{
		Type:      typ,
		RunID:     summary.RunID,
		Timestamp: time.Now().Unix(),
		Summary:   summary,
	}
}

// Notifier delivers events to one endpoint.
type Notifier struct {
	URL    string
	Secret string
	Client *http.Client

	// Delays are waited before each attempt; the first is usually 0.
	Delays []time.Duration

	Logger *slog.Logger
}

// New returns a Notifier with the default retry schedule (now, 1s, 5s, 30s).
func New(url, secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
		Delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		Logger: logger.With("component", "webhook"),
	}
}

// Deliver sends event once.
// The request body is signed with HMAC-SHA256 if the secret is non-empty.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricecrawl-Webhook/1.0")
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.Secret, body))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers event, retrying on failure per Delays. It blocks until
// delivery succeeds, retries run out or ctx ends.
func (n *Notifier) Send(ctx context.Context, event *Event) error {
	var err error
	for attempt, delay := range n.Delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		err = n.Deliver(ctx, event)
		if err == nil {
			n.Logger.Info("webhook delivered",
				"url", n.URL,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return nil
		}
		n.Logger.Warn("webhook delivery failed",
			"url", n.URL,
			"event", event.Type,
			"run_id", event.RunID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	n.Logger.Error("webhook delivery exhausted all retries",
		"url", n.URL,
		"event", event.Type,
		"run_id", event.RunID,
	)
	return err
}

// SendAsync runs Send in the background.
func (n *Notifier) SendAsync(event *Event) {
	go func() {
		_ = n.Send(context.Background(), event)
	}()
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
