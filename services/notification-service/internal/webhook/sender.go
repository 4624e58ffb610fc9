package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Sender forwards appointment events to an external endpoint, usually
// the CRM that owns the client contact details.
type Sender interface {
	Send(ctx context.Context, eventType string, payload json.RawMessage) error
	ProviderID() string
}

type HTTPSender struct {
	url   string
	token string
	http  *http.Client
}

func NewHTTPSender(url string, token string) *HTTPSender {
	return &HTTPSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *HTTPSender) ProviderID() string {
	return "webhook"
}

func (s *HTTPSender) Send(ctx context.Context, eventType string, payload json.RawMessage) error {
	if s.url == "" {
		return errors.New("webhook url not configured")
	}
	raw, err := json.Marshal(map[string]any{
		"event_type": eventType,
		"payload":    payload,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("webhook returned non-2xx")
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ json.RawMessage) error {
	return nil
}
