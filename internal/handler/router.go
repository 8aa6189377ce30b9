package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// defaultMaxUploadBytes caps report bodies when no limit is configured.
const defaultMaxUploadBytes = 20 << 20

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services the router exposes.
type Services struct {
	Auth      *service.AuthService
	Companies *service.CompanyService
	Vehicles  *service.VehicleService
	Reports   *service.ReportService
	Quarterly *service.QuarterlyService
	// Database is checked by /healthz and /readyz. Optional.
	Database Pinger
}

// Options tunes transport concerns.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Database))
	r.Get("/readyz", readyzHandler(svcs.Database, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		auth := JWTAuthMiddleware(svcs.Auth, logger)

		// =============================================
		// Auth
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.With(auth).Get("/me", authMeHandler(svcs.Auth, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)

			// =============================================
			// Companies
			// =============================================
			r.Get("/companies", listCompaniesHandler(svcs.Companies, logger))
			r.Get("/companies/{companyId}", getCompanyHandler(svcs.Companies, logger))
			r.Get("/companies/{companyId}/distribution-emails", getDistributionEmailsHandler(svcs.Companies, logger))
			r.Put("/companies/{companyId}/distribution-emails", putDistributionEmailsHandler(svcs.Companies, logger))

			// =============================================
			// Vehicles
			// =============================================
			r.Post("/vehicles", createVehicleHandler(svcs.Vehicles, logger))
			r.Get("/vehicles", listVehiclesHandler(svcs.Vehicles, logger))
			r.Delete("/vehicles/{vehicleId}", deleteVehicleHandler(svcs.Vehicles, logger))

			// =============================================
			// Monthly reports
			// =============================================
			r.Post("/ifta-reports", createReportHandler(svcs.Reports, maxUpload, logger))
			r.Get("/ifta-reports", listReportsHandler(svcs.Reports, logger))
			r.Get("/ifta-reports/{reportId}", getReportHandler(svcs.Reports, logger))
			r.Patch("/ifta-reports/{reportId}/status", updateReportStatusHandler(svcs.Reports, logger))
			r.Delete("/ifta-reports/{reportId}", deleteReportHandler(svcs.Reports, logger))
			r.Get("/ifta-reports/{reportId}/attachments/{attachmentId}", downloadAttachmentHandler(svcs.Reports, logger))

			// =============================================
			// Quarterly reports
			// =============================================
			r.Get("/quarterly-reports/company/{companyId}", listQuarterlyHandler(svcs.Quarterly, logger))
			r.Get("/quarterly-reports/company/{companyId}/quarter/{quarter}/year/{year}", quarterlySummaryHandler(svcs.Quarterly, logger))
			r.Patch("/quarterly-reports/{quarterlyId}/status", updateQuarterlyStatusHandler(svcs.Quarterly, logger))
			r.Delete("/quarterly-reports/{quarterlyId}", deleteQuarterlyHandler(svcs.Quarterly, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

// healthzHandler always answers 200 and reports dependency status in the
// body.
func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []domain.ServiceHealth{
			{Name: "ifta-api", Status: "healthy"},
		}
		if db != nil {
			services = append(services, pingService(r.Context(), "database", db))
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

// readyzHandler answers 503 while the database is unreachable.
func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if s := pingService(r.Context(), "database", db); s.Status != "healthy" {
				logger.Warn("readiness check failed", zap.String("error", s.Error))
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pingService(ctx context.Context, name string, p Pinger) domain.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	s := domain.ServiceHealth{Name: name, Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		s.Status = "unhealthy"
		s.Error = err.Error()
	}
	return s
}
