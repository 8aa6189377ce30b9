package database

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ============================================================
// Companies
// ============================================================

func (db *DB) CreateCompany(ctx context.Context, c *domain.Company) error {
	ctx, span := tracer.Start(ctx, "DB.CreateCompany")
	defer span.End()

	m := companyModel{
		Name:               c.Name,
		ContactEmail:       c.ContactEmail,
		DistributionEmails: datatypes.JSONSlice[string](nonNil(c.DistributionEmails)),
		IsActive:           true,
	}
	if err := db.conn(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	*c = *m.toDomain()
	return nil
}

func (db *DB) GetCompany(ctx context.Context, id uint) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "DB.GetCompany")
	defer span.End()

	var m companyModel
	if err := db.conn(ctx).Scopes(notDeleted).First(&m, id).Error; err != nil {
		return nil, lookupErr(err, "company", id, "get company")
	}
	return m.toDomain(), nil
}

func (db *DB) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	ctx, span := tracer.Start(ctx, "DB.ListCompanies")
	defer span.End()

	var rows []companyModel
	if err := db.conn(ctx).Scopes(notDeleted).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	out := make([]domain.Company, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (db *DB) UpdateDistributionEmails(ctx context.Context, id uint, emails []string) error {
	ctx, span := tracer.Start(ctx, "DB.UpdateDistributionEmails")
	defer span.End()

	res := db.conn(ctx).Model(&companyModel{}).
		Scopes(notDeleted).
		Where("id = ?", id).
		Updates(map[string]any{
			"distribution_emails": datatypes.JSONSlice[string](nonNil(emails)),
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update distribution emails: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "company", ID: fmt.Sprint(id)}
	}

	db.logger.Info("database: distribution emails updated",
		zap.Uint("company_id", id),
		zap.Int("count", len(emails)),
	)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
