package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var vehicleTracer = otel.Tracer("service/vehicle")

// VehicleService manages a company's vehicle registry.
type VehicleService struct {
	vehicles port.VehicleStore
	logger   *zap.Logger
}

func NewVehicleService(vehicles port.VehicleStore, logger *zap.Logger) *VehicleService {
	return &VehicleService{vehicles: vehicles, logger: logger}
}

// ============================================================
// CreateVehicle: POST /v1/vehicles
// ============================================================

func (s *VehicleService) CreateVehicle(ctx context.Context, p *domain.Principal, req *domain.CreateVehicleRequest) (*domain.Vehicle, error) {
	ctx, span := vehicleTracer.Start(ctx, "VehicleService.CreateVehicle")
	defer span.End()

	companyID, err := resolveCompanyID(p, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}

	v := &domain.Vehicle{
		CompanyID:    companyID,
		LicensePlate: normalizePlate(req.LicensePlate),
		LicenseState: strings.ToUpper(strings.TrimSpace(req.LicenseState)),
		Make:         strings.TrimSpace(req.Make),
		Model:        strings.TrimSpace(req.Model),
		Year:         req.Year,
		FuelType:     domain.FuelType(strings.ToLower(strings.TrimSpace(string(req.FuelType)))),
	}
	if v.FuelType == "" {
		v.FuelType = domain.FuelDiesel
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}

	if err := s.vehicles.CreateVehicle(ctx, v); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	s.logger.Info("vehicle registered",
		zap.Uint("company_id", companyID),
		zap.Uint("vehicle_id", v.ID),
		zap.String("plate", v.LicensePlate),
	)
	return v, nil
}

func validateVehicle(v *domain.Vehicle) error {
	if v.LicensePlate == "" {
		return &domain.ErrValidation{Field: "license_plate", Message: "is required"}
	}
	if len(v.LicensePlate) > 20 {
		return &domain.ErrValidation{Field: "license_plate", Message: "must be at most 20 characters"}
	}
	if !isStateCode(v.LicenseState) {
		return &domain.ErrValidation{Field: "license_state", Message: "must be a two-letter code"}
	}
	if !domain.ValidFuelType(v.FuelType) {
		return &domain.ErrValidation{Field: "fuel_type", Message: fmt.Sprintf("unknown fuel type %q", v.FuelType)}
	}
	if v.Year != 0 && (v.Year < 1900 || v.Year > 2100) {
		return &domain.ErrValidation{Field: "year", Message: "must be between 1900 and 2100"}
	}
	return nil
}

// ============================================================
// ListVehicles / DeleteVehicle
// ============================================================

func (s *VehicleService) ListVehicles(ctx context.Context, p *domain.Principal, requested *uint) ([]domain.Vehicle, error) {
	ctx, span := vehicleTracer.Start(ctx, "VehicleService.ListVehicles")
	defer span.End()

	companyID, err := resolveCompanyID(p, requested)
	if err != nil {
		return nil, err
	}
	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	vehicles, err := s.vehicles.ListVehicles(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *VehicleService) DeleteVehicle(ctx context.Context, p *domain.Principal, vehicleID uint) error {
	ctx, span := vehicleTracer.Start(ctx, "VehicleService.DeleteVehicle")
	defer span.End()

	v, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := AssertCompanyAccess(p, v.CompanyID); err != nil {
		return err
	}
	if err := s.vehicles.DeleteVehicle(ctx, vehicleID); err != nil {
		return err
	}

	s.logger.Info("vehicle deleted", zap.Uint("company_id", v.CompanyID), zap.Uint("vehicle_id", vehicleID))
	return nil
}

// normalizePlate uppercases a plate and strips surrounding whitespace.
func normalizePlate(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
