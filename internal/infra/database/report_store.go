package database

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Monthly reports
// ============================================================

// CreateReport inserts the report row and its lines. It joins the caller's
// transaction when ctx carries one.
func (db *DB) CreateReport(ctx context.Context, r *domain.MonthlyReport) error {
	ctx, span := tracer.Start(ctx, "DB.CreateReport")
	defer span.End()

	m := reportModel{
		CompanyID:         r.CompanyID,
		VehiclePlate:      r.VehiclePlate,
		ReportYear:        r.ReportYear,
		ReportMonth:       r.ReportMonth,
		Status:            string(r.Status),
		TotalMiles:        r.TotalMiles,
		TotalGallons:      r.TotalGallons,
		QuarterlyReportID: r.QuarterlyReportID,
		Notes:             r.Notes,
		SubmittedAt:       r.SubmittedAt,
		ApprovedAt:        r.ApprovedAt,
	}
	states := make([]reportStateModel, 0, len(r.States))

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := db.conn(ctx).Create(&m).Error; err != nil {
			if isUniqueViolation(err) {
				return &domain.ErrConflict{
					Message: fmt.Sprintf("report for %s %04d-%02d already exists", r.VehiclePlate, r.ReportYear, r.ReportMonth),
				}
			}
			return fmt.Errorf("create report: %w", err)
		}
		for _, s := range r.States {
			states = append(states, reportStateModel{
				ReportID:  m.ID,
				StateCode: s.StateCode,
				Miles:     s.Miles,
				Gallons:   s.Gallons,
			})
		}
		if len(states) == 0 {
			return nil
		}
		if err := db.conn(ctx).Create(&states).Error; err != nil {
			return fmt.Errorf("create report states: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	*r = *m.toDomain(states, nil)
	return nil
}

func (db *DB) GetReport(ctx context.Context, id uint) (*domain.MonthlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.GetReport")
	defer span.End()

	var m reportModel
	if err := db.conn(ctx).Scopes(notDeleted).First(&m, id).Error; err != nil {
		return nil, lookupErr(err, "report", id, "get report")
	}

	var states []reportStateModel
	if err := db.conn(ctx).Where("report_id = ?", id).Order("id ASC").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("get report states: %w", err)
	}
	var attachments []attachmentModel
	if err := db.conn(ctx).Where("report_id = ?", id).Order("id ASC").Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("get report attachments: %w", err)
	}
	return m.toDomain(states, attachments), nil
}

func (db *DB) ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.MonthlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.ListReports")
	defer span.End()

	q := db.conn(ctx).Scopes(notDeleted).Where("company_id = ?", f.CompanyID)
	if f.Year != 0 {
		q = q.Where("report_year = ?", f.Year)
	}
	if f.Quarter != 0 {
		first, last := domain.QuarterMonths(f.Quarter)
		q = q.Where("report_month BETWEEN ? AND ?", first, last)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var rows []reportModel
	err := q.Order("report_year DESC, report_month DESC, vehicle_plate ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return db.withStates(ctx, rows)
}

func (db *DB) ListQuarterReports(ctx context.Context, companyID uint, year, quarter int, statuses []domain.ReportStatus) ([]domain.MonthlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.ListQuarterReports")
	defer span.End()

	first, last := domain.QuarterMonths(quarter)
	literals := make([]string, len(statuses))
	for i, s := range statuses {
		literals[i] = string(s)
	}

	var rows []reportModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("company_id = ? AND report_year = ?", companyID, year).
		Where("report_month BETWEEN ? AND ?", first, last).
		Where("status IN ?", literals).
		Order("report_month ASC, vehicle_plate ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list quarter reports: %w", err)
	}
	return db.withStates(ctx, rows)
}

// UpdateReportStatus persists Status and the transition timestamps of r.
func (db *DB) UpdateReportStatus(ctx context.Context, r *domain.MonthlyReport) error {
	ctx, span := tracer.Start(ctx, "DB.UpdateReportStatus")
	defer span.End()

	now := time.Now().UTC()
	res := db.conn(ctx).Model(&reportModel{}).
		Scopes(notDeleted).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"status":       string(r.Status),
			"submitted_at": r.SubmittedAt,
			"approved_at":  r.ApprovedAt,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("update report status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "report", ID: fmt.Sprint(r.ID)}
	}
	r.UpdatedAt = now
	return nil
}

// DeleteReport soft-deletes the report. Its lines and attachments stay
// attached to the hidden row.
func (db *DB) DeleteReport(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "DB.DeleteReport")
	defer span.End()

	res := db.conn(ctx).Model(&reportModel{}).
		Scopes(notDeleted).
		Where("id = ?", id).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("delete report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "report", ID: fmt.Sprint(id)}
	}

	db.logger.Info("database: report soft-deleted", zap.Uint("report_id", id))
	return nil
}

// ============================================================
// Attachments
// ============================================================

func (db *DB) AddAttachment(ctx context.Context, a *domain.ReportAttachment) error {
	ctx, span := tracer.Start(ctx, "DB.AddAttachment")
	defer span.End()

	m := attachmentModel{
		ReportID:    a.ReportID,
		FileName:    a.FileName,
		MimeType:    a.MimeType,
		SizeBytes:   a.SizeBytes,
		StoragePath: a.StoragePath,
	}
	if err := db.conn(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	*a = *m.toDomain()
	return nil
}

func (db *DB) GetAttachment(ctx context.Context, reportID, attachmentID uint) (*domain.ReportAttachment, error) {
	ctx, span := tracer.Start(ctx, "DB.GetAttachment")
	defer span.End()

	var m attachmentModel
	err := db.conn(ctx).
		Where("id = ? AND report_id = ?", attachmentID, reportID).
		First(&m).Error
	if err != nil {
		return nil, lookupErr(err, "attachment", attachmentID, "get attachment")
	}
	return m.toDomain(), nil
}

// withStates loads the lines of rows with one query and maps to domain.
func (db *DB) withStates(ctx context.Context, rows []reportModel) ([]domain.MonthlyReport, error) {
	out := make([]domain.MonthlyReport, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var states []reportStateModel
	if err := db.conn(ctx).Where("report_id IN ?", ids).Order("id ASC").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("load report states: %w", err)
	}
	byReport := make(map[uint][]reportStateModel, len(rows))
	for _, s := range states {
		byReport[s.ReportID] = append(byReport[s.ReportID], s)
	}

	for i := range rows {
		out = append(out, *rows[i].toDomain(byReport[rows[i].ID], nil))
	}
	return out, nil
}
