package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var quarterlyTracer = otel.Tracer("service/quarterly")

// resolveAttempts bounds the find/insert loop of the rollup resolver. One
// lost insert race is expected; a second means the row vanished between
// the conflict and the re-read.
const resolveAttempts = 2

// QuarterlyService resolves, aggregates and transitions quarterly filings.
type QuarterlyService struct {
	quarterly port.QuarterlyStore
	reports   port.ReportStore
	cache     port.Cache[*domain.QuarterlySummary]
	notify    companyNotifier
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewQuarterlyService(
	quarterly port.QuarterlyStore,
	reports port.ReportStore,
	companies port.CompanyStore,
	cache port.Cache[*domain.QuarterlySummary],
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *QuarterlyService {
	return &QuarterlyService{
		quarterly: quarterly,
		reports:   reports,
		cache:     cache,
		notify:    companyNotifier{companies: companies, notifier: notifier, logger: logger},
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================
// GetOrCreateQuarterlyReport: rollup resolver
// ============================================================

// GetOrCreateQuarterlyReport returns the quarter's row, inserting it with
// status in_progress when absent. A legacy status found on the row is
// remapped and persisted before returning. It runs on the transaction
// carried by ctx, if any.
func (s *QuarterlyService) GetOrCreateQuarterlyReport(ctx context.Context, companyID uint, year, quarter int) (*domain.QuarterlyReport, error) {
	ctx, span := quarterlyTracer.Start(ctx, "QuarterlyService.GetOrCreateQuarterlyReport")
	defer span.End()
	span.SetAttributes(
		attribute.Int("company.id", int(companyID)),
		attribute.Int("period.year", year),
		attribute.Int("period.quarter", quarter),
	)

	if err := validatePeriod(year, quarter); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		q, err := s.quarterly.FindQuarterly(ctx, companyID, year, quarter)
		if err != nil {
			return nil, fmt.Errorf("find quarterly report: %w", err)
		}
		if q != nil {
			if err := s.remapLegacy(ctx, q); err != nil {
				return nil, err
			}
			if attempt > 0 {
				s.metrics.IncrQuarterlyResolved("raced")
			} else {
				s.metrics.IncrQuarterlyResolved("found")
			}
			return q, nil
		}

		q = &domain.QuarterlyReport{
			CompanyID: companyID,
			Year:      year,
			Quarter:   quarter,
			Status:    domain.QuarterlyInProgress,
		}
		inserted, err := s.quarterly.InsertQuarterlyIfAbsent(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("insert quarterly report: %w", err)
		}
		if inserted {
			s.metrics.IncrQuarterlyResolved("created")
			s.logger.Info("quarterly report created",
				zap.Uint("company_id", companyID),
				zap.Int("year", year),
				zap.Int("quarter", quarter),
				zap.Uint("quarterly_id", q.ID),
			)
			return q, nil
		}
		s.logger.Debug("quarterly insert lost race, re-reading",
			zap.Uint("company_id", companyID),
			zap.Int("year", year),
			zap.Int("quarter", quarter),
		)
	}

	return nil, &domain.ErrConflict{
		Message: fmt.Sprintf("could not resolve quarterly report %04d Q%d", year, quarter),
	}
}

func (s *QuarterlyService) remapLegacy(ctx context.Context, q *domain.QuarterlyReport) error {
	cur, legacy := domain.LegacyToCurrent(q.Status)
	if !legacy {
		return nil
	}
	from := q.Status
	q.Status = cur
	if err := s.quarterly.UpdateQuarterlyStatus(ctx, q); err != nil {
		return fmt.Errorf("remap legacy quarterly status: %w", err)
	}
	s.metrics.IncrQuarterlyResolved("remapped")
	s.logger.Info("quarterly legacy status remapped",
		zap.Uint("quarterly_id", q.ID),
		zap.String("from", string(from)),
		zap.String("to", string(cur)),
	)
	return nil
}

// ============================================================
// ListQuarterlyReports: GET /v1/quarterly-reports/company/{companyId}
// ============================================================

// ListQuarterlyReports returns the company's quarters, newest first, with
// statuses in the current vocabulary.
func (s *QuarterlyService) ListQuarterlyReports(ctx context.Context, p *domain.Principal, companyID uint) ([]domain.QuarterlyReport, error) {
	ctx, span := quarterlyTracer.Start(ctx, "QuarterlyService.ListQuarterlyReports")
	defer span.End()

	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	list, err := s.quarterly.ListQuarterly(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list quarterly reports: %w", err)
	}
	for i := range list {
		list[i].Status = list[i].Status.Normalize()
	}
	return list, nil
}

// ============================================================
// GetQuarterlySummary: GET .../company/{companyId}/quarter/{q}/year/{y}
// ============================================================

// GetQuarterlySummary aggregates the quarter's qualifying reports. It never
// creates the quarterly row: the header is nil until a report is filed.
func (s *QuarterlyService) GetQuarterlySummary(ctx context.Context, p *domain.Principal, companyID uint, year, quarter int) (*domain.QuarterlySummary, error) {
	ctx, span := quarterlyTracer.Start(ctx, "QuarterlyService.GetQuarterlySummary")
	defer span.End()
	start := time.Now()

	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, quarter); err != nil {
		return nil, err
	}

	key := summaryKey(companyID, year, quarter)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("quarterly_summary")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	s.metrics.IncrCacheMiss("quarterly_summary")
	// A write that commits while we load bumps the version and the stale
	// result is returned without being cached.
	version := s.cache.Version(key)

	var (
		header  *domain.QuarterlyReport
		reports []domain.MonthlyReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.quarterly.FindQuarterly(gctx, companyID, year, quarter)
		if err != nil {
			return fmt.Errorf("find quarterly report: %w", err)
		}
		header = q
		return nil
	})
	g.Go(func() error {
		rs, err := s.reports.ListQuarterReports(gctx, companyID, year, quarter, domain.QualifyingStatuses())
		if err != nil {
			return fmt.Errorf("list quarter reports: %w", err)
		}
		reports = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := BuildQuarterlySummary(companyID, year, quarter, header, reports)
	if !s.cache.SetIfVersion(key, summary, version) {
		s.logger.Debug("quarterly summary invalidated while loading, not cached", zap.String("key", key))
	}
	s.metrics.RecordOperationDuration("quarterly_summary", time.Since(start))

	s.logger.Debug("quarterly summary built",
		zap.Uint("company_id", companyID),
		zap.Int("year", year),
		zap.Int("quarter", quarter),
		zap.Int("reports", summary.Totals.ReportCount),
	)
	return summary, nil
}

// ============================================================
// UpdateQuarterlyStatus: PATCH /v1/quarterly-reports/{quarterlyId}/status
// ============================================================

func (s *QuarterlyService) UpdateQuarterlyStatus(ctx context.Context, p *domain.Principal, id uint, raw string) (*domain.QuarterlyReport, error) {
	ctx, span := quarterlyTracer.Start(ctx, "QuarterlyService.UpdateQuarterlyStatus")
	defer span.End()

	target, err := domain.ParseQuarterlyStatus(raw)
	if err != nil {
		return nil, err
	}

	q, err := s.quarterly.GetQuarterly(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, q.CompanyID); err != nil {
		return nil, err
	}

	from := q.Status
	if from == target {
		return q, nil
	}

	// A legacy row moving to its own mapped value is a rename, not a
	// transition: no timestamp.
	q.Status = target
	if from.Normalize() != target {
		q.Stamp(string(target), s.now())
	}
	if err := s.quarterly.UpdateQuarterlyStatus(ctx, q); err != nil {
		return nil, fmt.Errorf("update quarterly status: %w", err)
	}
	s.InvalidateSummary(q.CompanyID, q.Year, q.Quarter)
	s.metrics.IncrStatusTransition("quarterly", string(target))

	s.logger.Info("quarterly status changed",
		zap.Uint("quarterly_id", q.ID),
		zap.Uint("company_id", q.CompanyID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	s.notify.notify(ctx, q.CompanyID, domain.TemplateQuarterlyStatusChanged, map[string]any{
		"quarterly_id": q.ID,
		"year":         q.Year,
		"quarter":      q.Quarter,
		"status":       string(target),
	})
	return q, nil
}

// ============================================================
// DeleteQuarterlyReport: DELETE /v1/quarterly-reports/{quarterlyId}
// ============================================================

// DeleteQuarterlyReport is admin only. The quarter's monthly reports and
// their lines go with it.
func (s *QuarterlyService) DeleteQuarterlyReport(ctx context.Context, p *domain.Principal, id uint) error {
	ctx, span := quarterlyTracer.Start(ctx, "QuarterlyService.DeleteQuarterlyReport")
	defer span.End()

	if p == nil {
		return &domain.ErrUnauthorized{Message: "authentication required"}
	}
	if !p.IsAdmin() {
		return &domain.ErrForbidden{Action: "delete quarterly reports"}
	}
	q, err := s.quarterly.GetQuarterly(ctx, id)
	if err != nil {
		return err
	}
	if err := s.quarterly.DeleteQuarterly(ctx, id); err != nil {
		return err
	}
	s.InvalidateSummary(q.CompanyID, q.Year, q.Quarter)

	s.logger.Warn("quarterly report deleted",
		zap.Uint("quarterly_id", id),
		zap.Uint("company_id", q.CompanyID),
		zap.Uint("by_user", p.UserID),
	)
	return nil
}

// InvalidateSummary drops the cached summary of one quarter.
func (s *QuarterlyService) InvalidateSummary(companyID uint, year, quarter int) {
	s.cache.Delete(summaryKey(companyID, year, quarter))
}

func summaryKey(companyID uint, year, quarter int) string {
	return fmt.Sprintf("%d:%d:%d", companyID, year, quarter)
}

func validatePeriod(year, quarter int) error {
	if quarter < 1 || quarter > 4 {
		return &domain.ErrValidation{Field: "quarter", Message: "must be between 1 and 4"}
	}
	if year < 2000 || year > 2100 {
		return &domain.ErrValidation{Field: "year", Message: "must be between 2000 and 2100"}
	}
	return nil
}
