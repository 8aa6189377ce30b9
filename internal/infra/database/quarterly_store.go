package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ============================================================
// Quarterly reports
// ============================================================

func (db *DB) FindQuarterly(ctx context.Context, companyID uint, year, quarter int) (*domain.QuarterlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.FindQuarterly")
	defer span.End()

	var m quarterlyModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("company_id = ? AND year = ? AND quarter = ?", companyID, year, quarter).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find quarterly report: %w", err)
	}
	return m.toDomain(), nil
}

// InsertQuarterlyIfAbsent relies on the (company_id, year, quarter) unique
// index: a concurrent winner turns this insert into a no-op instead of an
// error. A driver that still reports the unique violation is treated the
// same way. q is filled from the inserted row only when inserted is true.
func (db *DB) InsertQuarterlyIfAbsent(ctx context.Context, q *domain.QuarterlyReport) (bool, error) {
	ctx, span := tracer.Start(ctx, "DB.InsertQuarterlyIfAbsent")
	defer span.End()

	m := quarterlyModel{
		CompanyID:   q.CompanyID,
		Year:        q.Year,
		Quarter:     q.Quarter,
		Status:      string(q.Status),
		SubmittedAt: q.SubmittedAt,
		ApprovedAt:  q.ApprovedAt,
	}
	res := db.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "year"}, {Name: "quarter"}},
		DoNothing: true,
	}).Create(&m)
	if isUniqueViolation(res.Error) {
		return false, nil
	}
	if res.Error != nil {
		return false, fmt.Errorf("insert quarterly report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*q = *m.toDomain()
	return true, nil
}

func (db *DB) GetQuarterly(ctx context.Context, id uint) (*domain.QuarterlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.GetQuarterly")
	defer span.End()

	var m quarterlyModel
	if err := db.conn(ctx).Scopes(notDeleted).First(&m, id).Error; err != nil {
		return nil, lookupErr(err, "quarterly report", id, "get quarterly report")
	}
	return m.toDomain(), nil
}

func (db *DB) ListQuarterly(ctx context.Context, companyID uint) ([]domain.QuarterlyReport, error) {
	ctx, span := tracer.Start(ctx, "DB.ListQuarterly")
	defer span.End()

	var rows []quarterlyModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("company_id = ?", companyID).
		Order("year DESC, quarter DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list quarterly reports: %w", err)
	}
	out := make([]domain.QuarterlyReport, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// UpdateQuarterlyStatus persists Status and the transition timestamps of q.
func (db *DB) UpdateQuarterlyStatus(ctx context.Context, q *domain.QuarterlyReport) error {
	ctx, span := tracer.Start(ctx, "DB.UpdateQuarterlyStatus")
	defer span.End()

	now := time.Now().UTC()
	res := db.conn(ctx).Model(&quarterlyModel{}).
		Scopes(notDeleted).
		Where("id = ?", q.ID).
		Updates(map[string]any{
			"status":       string(q.Status),
			"submitted_at": q.SubmittedAt,
			"approved_at":  q.ApprovedAt,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("update quarterly status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "quarterly report", ID: fmt.Sprint(q.ID)}
	}
	q.UpdatedAt = now
	return nil
}

// DeleteQuarterly removes the quarter row; the foreign keys cascade to its
// monthly reports and their lines.
func (db *DB) DeleteQuarterly(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "DB.DeleteQuarterly")
	defer span.End()

	res := db.conn(ctx).Delete(&quarterlyModel{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete quarterly report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "quarterly report", ID: fmt.Sprint(id)}
	}
	return nil
}
