package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/notify"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSender(url string) *notify.HTTPSender {
	return notify.NewHTTPSender(
		&http.Client{Timeout: 2 * time.Second},
		url,
		"secret-key",
		resilience.NewCircuitBreaker("email-test", zap.NewNop()),
		resilience.Config{MaxRetries: 2, InitialBackoff: 5 * time.Millisecond},
	)
}

func sample() domain.Notification {
	return domain.Notification{
		Recipients: []string{"ops@acme.test"},
		Template:   domain.TemplateReportCreated,
		Variables:  map[string]any{"report_id": 7},
	}
}

func TestHTTPSender_PostsJSON(t *testing.T) {
	var got domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/send", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, newSender(srv.URL+"/").Send(context.Background(), sample()))
	assert.Equal(t, domain.TemplateReportCreated, got.Template)
	assert.Equal(t, []string{"ops@acme.test"}, got.Recipients)
}

func TestHTTPSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newSender(srv.URL).Send(context.Background(), sample()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSender_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown template", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := newSender(srv.URL).Send(context.Background(), sample())
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "email", ext.Service)
	assert.Equal(t, int32(1), calls.Load())
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []domain.Notification
	block chan struct{}
	err   error
}

func (s *recordingSender) Send(ctx context.Context, n domain.Notification) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcher_DeliversAfterRequestContextEnds(t *testing.T) {
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, 4, time.Second, observability.NewMetrics(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Notify(ctx, sample()))
	cancel()

	closeCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, d.Close(closeCtx))
	assert.Equal(t, 1, sender.count())
}

func TestDispatcher_SkipsEmptyRecipients(t *testing.T) {
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, 1, time.Second, nil, zap.NewNop())

	require.NoError(t, d.Notify(context.Background(), domain.Notification{Template: domain.TemplateReportCreated}))
	require.NoError(t, d.Close(context.Background()))
	assert.Zero(t, sender.count())
}

func TestDispatcher_DropsWhenSaturated(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := notify.NewDispatcher(sender, 1, time.Second, observability.NewMetrics(), zap.NewNop())

	require.NoError(t, d.Notify(context.Background(), sample()))
	require.NoError(t, d.Notify(context.Background(), sample()))
	close(sender.block)

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestDispatcher_FailureDoesNotSurface(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := notify.NewDispatcher(sender, 1, time.Second, observability.NewMetrics(), zap.NewNop())

	assert.NoError(t, d.Notify(context.Background(), sample()))
	require.NoError(t, d.Close(context.Background()))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, notify.NewLogSender(zap.NewNop()).Send(context.Background(), sample()))
}
