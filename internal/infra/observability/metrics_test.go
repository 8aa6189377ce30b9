package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func findFamily(t *testing.T, m *observability.Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetrics_Counters(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrReportCreated()
	m.IncrReportCreated()
	m.IncrStatusTransition("monthly", "sent")
	m.IncrQuarterlyResolved("remapped")
	m.IncrCacheHit("quarterly_summary")

	created := findFamily(t, m, "ifta_reports_created_total")
	require.NotNil(t, created)
	assert.Equal(t, float64(2), created.GetMetric()[0].GetCounter().GetValue())

	transitions := findFamily(t, m, "ifta_status_transitions_total")
	require.NotNil(t, transitions)
	metric := transitions.GetMetric()[0]
	assert.Equal(t, "monthly", labelValue(metric, "level"))
	assert.Equal(t, "sent", labelValue(metric, "status"))

	resolved := findFamily(t, m, "ifta_quarterly_resolutions_total")
	require.NotNil(t, resolved)
	assert.Equal(t, "remapped", labelValue(resolved.GetMetric()[0], "outcome"))
}

func TestMetrics_NewMetricsTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = observability.NewMetrics()
		_ = observability.NewMetrics()
	})
}

func TestZapLoggerMiddleware_RecordsRoutePattern(t *testing.T) {
	m := observability.NewMetrics()

	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.NewNop(), m))
	r.Get("/v1/ifta-reports/{reportId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ifta-reports/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	family := findFamily(t, m, "ifta_http_request_duration_seconds")
	require.NotNil(t, family)
	metric := family.GetMetric()[0]
	assert.Equal(t, "/v1/ifta-reports/{reportId}", labelValue(metric, "route"))
	assert.Equal(t, "404", labelValue(metric, "status"))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := t.TempDir() + "/ifta.log"
	logger := observability.NewLogger("info", path)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, path)
}
