package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"gorm.io/gorm"
)

// ============================================================
// Vehicles
// ============================================================

func (db *DB) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	ctx, span := tracer.Start(ctx, "DB.CreateVehicle")
	defer span.End()

	m := vehicleModel{
		CompanyID:    v.CompanyID,
		LicensePlate: strings.ToUpper(v.LicensePlate),
		LicenseState: strings.ToUpper(v.LicenseState),
		Make:         v.Make,
		Model:        v.Model,
		Year:         v.Year,
		FuelType:     string(v.FuelType),
	}
	if err := db.conn(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{
				Message: fmt.Sprintf("vehicle %s/%s already registered", m.LicensePlate, m.LicenseState),
			}
		}
		return fmt.Errorf("create vehicle: %w", err)
	}
	*v = *m.toDomain()
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, id uint) (*domain.Vehicle, error) {
	ctx, span := tracer.Start(ctx, "DB.GetVehicle")
	defer span.End()

	var m vehicleModel
	if err := db.conn(ctx).Scopes(notDeleted).First(&m, id).Error; err != nil {
		return nil, lookupErr(err, "vehicle", id, "get vehicle")
	}
	return m.toDomain(), nil
}

func (db *DB) FindVehicleByPlate(ctx context.Context, companyID uint, plate string) (*domain.Vehicle, error) {
	ctx, span := tracer.Start(ctx, "DB.FindVehicleByPlate")
	defer span.End()

	var m vehicleModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("company_id = ? AND license_plate = ?", companyID, strings.ToUpper(plate)).
		Order("id ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vehicle by plate: %w", err)
	}
	return m.toDomain(), nil
}

func (db *DB) ListVehicles(ctx context.Context, companyID uint) ([]domain.Vehicle, error) {
	ctx, span := tracer.Start(ctx, "DB.ListVehicles")
	defer span.End()

	var rows []vehicleModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("company_id = ?", companyID).
		Order("license_plate ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	out := make([]domain.Vehicle, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// DeleteVehicle soft-deletes the vehicle. Its reports are kept.
func (db *DB) DeleteVehicle(ctx context.Context, id uint) error {
	ctx, span := tracer.Start(ctx, "DB.DeleteVehicle")
	defer span.End()

	res := db.conn(ctx).Model(&vehicleModel{}).
		Scopes(notDeleted).
		Where("id = ?", id).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("delete vehicle: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "vehicle", ID: fmt.Sprint(id)}
	}
	return nil
}
