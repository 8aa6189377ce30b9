package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reportTracer = otel.Tracer("service/report")

const (
	maxStateLines  = 64
	maxAttachments = 10

	// measurementPlaces matches the decimal(12,2) storage columns.
	measurementPlaces = 2
)

// maxMeasurement is the first value a decimal(12,2) column cannot hold.
var maxMeasurement = decimal.New(1, 10)

// ReportService handles monthly IFTA reports.
type ReportService struct {
	reports   port.ReportStore
	vehicles  port.VehicleStore
	quarterly *QuarterlyService
	blobs     port.BlobStore
	tx        port.Transactor
	notify    companyNotifier
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewReportService(
	reports port.ReportStore,
	vehicles port.VehicleStore,
	companies port.CompanyStore,
	quarterly *QuarterlyService,
	blobs port.BlobStore,
	tx port.Transactor,
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:   reports,
		vehicles:  vehicles,
		quarterly: quarterly,
		blobs:     blobs,
		tx:        tx,
		notify:    companyNotifier{companies: companies, notifier: notifier, logger: logger},
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================
// CreateReport: POST /v1/ifta-reports
// ============================================================

// CreateReport validates the request, then in one transaction resolves the
// quarter, inserts the report with its lines and stores the attachments.
// Blobs written before a failure are removed.
func (s *ReportService) CreateReport(ctx context.Context, p *domain.Principal, req *domain.CreateReportRequest, uploads []domain.AttachmentUpload) (*domain.MonthlyReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.CreateReport")
	defer span.End()
	start := time.Now()

	companyID, err := resolveCompanyID(p, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}

	report, err := buildReport(companyID, req)
	if err != nil {
		return nil, err
	}
	if len(uploads) > maxAttachments {
		return nil, &domain.ErrValidation{
			Field:   "attachments",
			Message: fmt.Sprintf("at most %d files allowed", maxAttachments),
		}
	}
	span.SetAttributes(
		attribute.Int("company.id", int(companyID)),
		attribute.String("vehicle.plate", report.VehiclePlate),
		attribute.Int("period.year", report.ReportYear),
		attribute.Int("period.month", report.ReportMonth),
	)

	vehicle, err := s.vehicles.FindVehicleByPlate(ctx, companyID, report.VehiclePlate)
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, &domain.ErrNotFound{Resource: "vehicle", ID: report.VehiclePlate}
	}

	var saved []string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		q, err := s.quarterly.GetOrCreateQuarterlyReport(ctx, companyID, report.ReportYear, report.Quarter())
		if err != nil {
			return err
		}
		report.QuarterlyReportID = q.ID

		if err := s.reports.CreateReport(ctx, report); err != nil {
			return err
		}

		for _, up := range uploads {
			key := fmt.Sprintf("%d/%s-%s", report.ID, uuid.NewString(), safeFileName(up.FileName))
			n, err := s.blobs.Save(ctx, key, up.Content)
			if err != nil {
				return fmt.Errorf("save attachment %q: %w", up.FileName, err)
			}
			saved = append(saved, key)

			att := &domain.ReportAttachment{
				ReportID:    report.ID,
				FileName:    up.FileName,
				MimeType:    up.MimeType,
				SizeBytes:   n,
				StoragePath: key,
			}
			if err := s.reports.AddAttachment(ctx, att); err != nil {
				return err
			}
			report.Attachments = append(report.Attachments, *att)
		}
		return nil
	})
	if err != nil {
		s.discardBlobs(ctx, saved)
		return nil, err
	}

	s.quarterly.InvalidateSummary(companyID, report.ReportYear, report.Quarter())
	s.metrics.IncrReportCreated()
	s.metrics.RecordOperationDuration("create_report", time.Since(start))

	s.logger.Info("monthly report created",
		zap.Uint("report_id", report.ID),
		zap.Uint("company_id", companyID),
		zap.String("plate", report.VehiclePlate),
		zap.Int("year", report.ReportYear),
		zap.Int("month", report.ReportMonth),
		zap.Int("attachments", len(report.Attachments)),
	)

	s.notify.notify(ctx, companyID, domain.TemplateReportCreated, map[string]any{
		"report_id":     report.ID,
		"vehicle_plate": report.VehiclePlate,
		"year":          report.ReportYear,
		"month":         report.ReportMonth,
		"total_miles":   report.TotalMiles.StringFixed(presentationPlaces),
		"total_gallons": report.TotalGallons.StringFixed(presentationPlaces),
	})
	return report, nil
}

func (s *ReportService) discardBlobs(ctx context.Context, keys []string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(cleanupCtx, key); err != nil {
			s.logger.Error("orphaned attachment blob", zap.String("key", key), zap.Error(err))
		}
	}
}

// buildReport validates req and returns the report to insert, with totals
// summed from its lines.
func buildReport(companyID uint, req *domain.CreateReportRequest) (*domain.MonthlyReport, error) {
	if req.ReportMonth < 1 || req.ReportMonth > 12 {
		return nil, &domain.ErrValidation{Field: "report_month", Message: "must be between 1 and 12"}
	}
	if req.ReportYear < 2000 || req.ReportYear > 2100 {
		return nil, &domain.ErrValidation{Field: "report_year", Message: "must be between 2000 and 2100"}
	}
	plate := normalizePlate(req.VehiclePlate)
	if plate == "" {
		return nil, &domain.ErrValidation{Field: "vehicle_plate", Message: "is required"}
	}
	if len(req.States) == 0 {
		return nil, &domain.ErrValidation{Field: "states", Message: "at least one state line is required"}
	}
	if len(req.States) > maxStateLines {
		return nil, &domain.ErrValidation{Field: "states", Message: fmt.Sprintf("at most %d state lines allowed", maxStateLines)}
	}

	r := &domain.MonthlyReport{
		CompanyID:    companyID,
		VehiclePlate: plate,
		ReportYear:   req.ReportYear,
		ReportMonth:  req.ReportMonth,
		Status:       domain.ReportInProgress,
		Notes:        strings.TrimSpace(req.Notes),
		States:       make([]domain.ReportState, 0, len(req.States)),
		TotalMiles:   decimal.Zero,
		TotalGallons: decimal.Zero,
	}

	seen := make(map[string]struct{}, len(req.States))
	for i, line := range req.States {
		code := strings.ToUpper(strings.TrimSpace(line.StateCode))
		field := fmt.Sprintf("states[%d]", i)
		if !isStateCode(code) {
			return nil, &domain.ErrValidation{Field: field + ".state_code", Message: "must be a two-letter code"}
		}
		if _, dup := seen[code]; dup {
			return nil, &domain.ErrValidation{Field: field + ".state_code", Message: fmt.Sprintf("duplicate state %s", code)}
		}
		seen[code] = struct{}{}
		if line.Miles.IsNegative() {
			return nil, &domain.ErrValidation{Field: field + ".miles", Message: "must not be negative"}
		}
		if line.Gallons.IsNegative() {
			return nil, &domain.ErrValidation{Field: field + ".gallons", Message: "must not be negative"}
		}
		if err := checkMeasurement(field+".miles", line.Miles); err != nil {
			return nil, err
		}
		if err := checkMeasurement(field+".gallons", line.Gallons); err != nil {
			return nil, err
		}

		r.States = append(r.States, domain.ReportState{
			StateCode: code,
			Miles:     line.Miles,
			Gallons:   line.Gallons,
			MPG:       domain.DerivedMPG(line.Miles, line.Gallons),
		})
		r.TotalMiles = r.TotalMiles.Add(line.Miles)
		r.TotalGallons = r.TotalGallons.Add(line.Gallons)
	}
	if r.TotalMiles.GreaterThanOrEqual(maxMeasurement) {
		return nil, &domain.ErrValidation{Field: "states", Message: "total miles too large"}
	}
	if r.TotalGallons.GreaterThanOrEqual(maxMeasurement) {
		return nil, &domain.ErrValidation{Field: "states", Message: "total gallons too large"}
	}
	return r, nil
}

// checkMeasurement keeps line values within the decimal(12,2) columns, so a
// report total always equals the sum of its stored lines.
func checkMeasurement(field string, v decimal.Decimal) error {
	if !v.Equal(v.Round(measurementPlaces)) {
		return &domain.ErrValidation{Field: field, Message: fmt.Sprintf("at most %d decimal places allowed", measurementPlaces)}
	}
	if v.GreaterThanOrEqual(maxMeasurement) {
		return &domain.ErrValidation{Field: field, Message: "value too large"}
	}
	return nil
}

// safeFileName keeps the base name and replaces anything outside a
// conservative character set.
func safeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// ============================================================
// ListReports / GetReport: GET /v1/ifta-reports
// ============================================================

func (s *ReportService) ListReports(ctx context.Context, p *domain.Principal, requested *uint, f domain.ReportFilter) ([]domain.MonthlyReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.ListReports")
	defer span.End()

	companyID, err := resolveCompanyID(p, requested)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	if f.Quarter < 0 || f.Quarter > 4 {
		return nil, &domain.ErrValidation{Field: "quarter", Message: "must be between 1 and 4"}
	}
	if f.Status != "" {
		if _, err := domain.ParseReportStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	f.CompanyID = companyID

	reports, err := s.reports.ListReports(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *ReportService) GetReport(ctx context.Context, p *domain.Principal, id uint) (*domain.MonthlyReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetReport")
	defer span.End()

	r, err := s.reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, r.CompanyID); err != nil {
		return nil, err
	}
	return r, nil
}

// ============================================================
// UpdateReportStatus: PATCH /v1/ifta-reports/{reportId}/status
// ============================================================

// UpdateReportStatus moves a report through the monthly workflow. sent
// stamps submitted_at and completed stamps approved_at. Completed is
// terminal; re-setting the current status changes nothing.
func (s *ReportService) UpdateReportStatus(ctx context.Context, p *domain.Principal, id uint, raw string) (*domain.MonthlyReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.UpdateReportStatus")
	defer span.End()

	target, err := domain.ParseReportStatus(raw)
	if err != nil {
		return nil, err
	}

	r, err := s.GetReport(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if r.Status == target {
		return r, nil
	}
	if !r.Status.CanTransitionTo(target) {
		return nil, &domain.ErrConflict{
			Message: fmt.Sprintf("report %d is %s and cannot move to %s", r.ID, r.Status, target),
		}
	}

	from := r.Status
	r.Status = target
	r.Stamp(string(target), s.now())
	if err := s.reports.UpdateReportStatus(ctx, r); err != nil {
		return nil, fmt.Errorf("update report status: %w", err)
	}
	s.quarterly.InvalidateSummary(r.CompanyID, r.ReportYear, r.Quarter())
	s.metrics.IncrStatusTransition("monthly", string(target))

	s.logger.Info("report status changed",
		zap.Uint("report_id", r.ID),
		zap.Uint("company_id", r.CompanyID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	s.notify.notify(ctx, r.CompanyID, domain.TemplateReportStatusChanged, map[string]any{
		"report_id":     r.ID,
		"vehicle_plate": r.VehiclePlate,
		"year":          r.ReportYear,
		"month":         r.ReportMonth,
		"status":        string(target),
	})
	return r, nil
}

// ============================================================
// DeleteReport: DELETE /v1/ifta-reports/{reportId}
// ============================================================

// DeleteReport soft-deletes a report so its period can be filed again.
// Completed reports are kept.
func (s *ReportService) DeleteReport(ctx context.Context, p *domain.Principal, id uint) error {
	ctx, span := reportTracer.Start(ctx, "ReportService.DeleteReport")
	defer span.End()

	r, err := s.GetReport(ctx, p, id)
	if err != nil {
		return err
	}
	if r.Status == domain.ReportCompleted {
		return &domain.ErrConflict{Message: fmt.Sprintf("report %d is completed and cannot be deleted", r.ID)}
	}
	if err := s.reports.DeleteReport(ctx, id); err != nil {
		return err
	}
	s.quarterly.InvalidateSummary(r.CompanyID, r.ReportYear, r.Quarter())

	s.logger.Info("report deleted", zap.Uint("report_id", id), zap.Uint("company_id", r.CompanyID))
	return nil
}

// ============================================================
// OpenAttachment: GET /v1/ifta-reports/{reportId}/attachments/{attachmentId}
// ============================================================

// OpenAttachment returns the attachment metadata and its content. The
// caller closes the reader.
func (s *ReportService) OpenAttachment(ctx context.Context, p *domain.Principal, reportID, attachmentID uint) (*domain.ReportAttachment, io.ReadCloser, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.OpenAttachment")
	defer span.End()

	if _, err := s.GetReport(ctx, p, reportID); err != nil {
		return nil, nil, err
	}
	att, err := s.reports.GetAttachment(ctx, reportID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, att.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return att, rc, nil
}
