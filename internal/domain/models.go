// Package domain defines the core business entities of the IFTA reporting
// service. These types are independent of persistence and transport and are
// the canonical data structures passed between layers.
package domain

import "time"

// ============================================================
// Companies (tenants)
// ============================================================

// Company is the tenant root. Every other entity is scoped by its ID.
type Company struct {
	ID                 uint      `json:"id"`
	Name               string    `json:"name"`
	ContactEmail       string    `json:"contact_email"`
	DistributionEmails []string  `json:"distribution_emails"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Recipients returns the contact address followed by the distribution list,
// without duplicates.
func (c *Company) Recipients() []string {
	seen := make(map[string]struct{}, len(c.DistributionEmails)+1)
	out := make([]string, 0, len(c.DistributionEmails)+1)
	for _, e := range append([]string{c.ContactEmail}, c.DistributionEmails...) {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// ============================================================
// Users
// ============================================================

// Role is a user's authorization role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a login identity. CompanyID is nil for admins.
type User struct {
	ID           uint       `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CompanyID    *uint      `json:"company_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    uint
	CompanyID *uint
	Role      Role
}

// IsAdmin reports whether the caller bypasses tenant scoping.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// ============================================================
// Vehicles
// ============================================================

// FuelType is the IFTA fuel classification of a qualified motor vehicle.
type FuelType string

const (
	FuelDiesel    FuelType = "diesel"
	FuelGasoline  FuelType = "gasoline"
	FuelPropane   FuelType = "propane"
	FuelLNG       FuelType = "lng"
	FuelCNG       FuelType = "cng"
	FuelEthanol   FuelType = "ethanol"
	FuelMethanol  FuelType = "methanol"
	FuelE85       FuelType = "e85"
	FuelM85       FuelType = "m85"
	FuelA55       FuelType = "a55"
	FuelBiodiesel FuelType = "biodiesel"
)

// ValidFuelType reports whether f is a known fuel classification.
func ValidFuelType(f FuelType) bool {
	switch f {
	case FuelDiesel, FuelGasoline, FuelPropane, FuelLNG, FuelCNG, FuelEthanol,
		FuelMethanol, FuelE85, FuelM85, FuelA55, FuelBiodiesel:
		return true
	}
	return false
}

// Vehicle is a registered unit. (LicensePlate, LicenseState) is unique.
type Vehicle struct {
	ID           uint      `json:"id"`
	CompanyID    uint      `json:"company_id"`
	LicensePlate string    `json:"license_plate"`
	LicenseState string    `json:"license_state"`
	Make         string    `json:"make,omitempty"`
	Model        string    `json:"model,omitempty"`
	Year         int       `json:"year,omitempty"`
	FuelType     FuelType  `json:"fuel_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateVehicleRequest is the body for POST /v1/vehicles.
type CreateVehicleRequest struct {
	CompanyID    *uint    `json:"company_id,omitempty"`
	LicensePlate string   `json:"license_plate"`
	LicenseState string   `json:"license_state"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	FuelType     FuelType `json:"fuel_type"`
}
