// Package notify hands notifications to the external email API. Delivery is
// fire-and-forget: request handlers never wait on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("notify")

// Sender delivers one notification synchronously.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// ============================================================
// HTTPSender: POST {baseURL}/v1/send
// ============================================================

// HTTPSender calls the email API through a circuit breaker with retries.
type HTTPSender struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewHTTPSender creates a sender for the email API at baseURL.
func NewHTTPSender(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *HTTPSender {
	return &HTTPSender{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
	}
}

func (s *HTTPSender) Send(ctx context.Context, n domain.Notification) error {
	ctx, span := tracer.Start(ctx, "HTTPSender.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.template", n.Template),
		attribute.Int("notification.recipients", len(n.Recipients)),
	)

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	_, err = s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			return s.post(ctx, body)
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "email", Err: err}
	}
	return nil
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("email API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return resilience.Permanent(err)
	}
	return err
}

// ============================================================
// LogSender: used when no email API is configured
// ============================================================

// LogSender only logs the notification.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n domain.Notification) error {
	s.logger.Info("notify: email API not configured, notification logged only",
		zap.String("template", n.Template),
		zap.Strings("recipients", n.Recipients),
		zap.Any("variables", n.Variables),
	)
	return nil
}
