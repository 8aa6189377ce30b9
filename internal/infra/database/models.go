package database

import (
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================
// Table models. Core tables carry a nullable deleted_at that is
// filtered by the explicit notDeleted scope, never by an implicit
// ORM default scope. Relations are declared belongs-to only so each
// child table owns its ON DELETE CASCADE foreign key; lines and
// attachments are loaded with explicit queries.
// ============================================================

type companyModel struct {
	ID                 uint                        `gorm:"primaryKey"`
	Name               string                      `gorm:"size:255;not null"`
	ContactEmail       string                      `gorm:"size:255"`
	DistributionEmails datatypes.JSONSlice[string] `gorm:"not null"`
	IsActive           bool                        `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time `gorm:"index"`
}

func (companyModel) TableName() string { return "companies" }

type userModel struct {
	ID           uint          `gorm:"primaryKey"`
	Email        string        `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string        `gorm:"size:255;not null"`
	Role         string        `gorm:"size:20;not null;default:'user'"`
	CompanyID    *uint         `gorm:"index"`
	Company      *companyModel `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	IsActive     bool          `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

type vehicleModel struct {
	ID           uint          `gorm:"primaryKey"`
	CompanyID    uint          `gorm:"not null;index"`
	Company      *companyModel `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	LicensePlate string        `gorm:"size:20;not null;uniqueIndex:idx_vehicles_plate_state,priority:1,where:deleted_at IS NULL"`
	LicenseState string        `gorm:"size:2;not null;uniqueIndex:idx_vehicles_plate_state,priority:2"`
	Make         string        `gorm:"size:100"`
	Model        string        `gorm:"size:100"`
	Year         int
	FuelType     string `gorm:"size:20;not null;default:'diesel'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time `gorm:"index"`
}

func (vehicleModel) TableName() string { return "vehicles" }

type quarterlyModel struct {
	ID          uint          `gorm:"primaryKey"`
	CompanyID   uint          `gorm:"not null;uniqueIndex:idx_quarterly_period,priority:1"`
	Company     *companyModel `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Year        int           `gorm:"not null;uniqueIndex:idx_quarterly_period,priority:2"`
	Quarter     int           `gorm:"not null;uniqueIndex:idx_quarterly_period,priority:3"`
	Status      string        `gorm:"size:20;not null;default:'in_progress'"`
	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time `gorm:"index"`
}

func (quarterlyModel) TableName() string { return "ifta_quarterly_reports" }

type reportModel struct {
	ID                uint            `gorm:"primaryKey"`
	CompanyID         uint            `gorm:"not null;index;uniqueIndex:idx_reports_period,priority:1,where:deleted_at IS NULL"`
	Company           *companyModel   `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	VehiclePlate      string          `gorm:"size:20;not null;uniqueIndex:idx_reports_period,priority:2"`
	ReportYear        int             `gorm:"not null;uniqueIndex:idx_reports_period,priority:3"`
	ReportMonth       int             `gorm:"not null;uniqueIndex:idx_reports_period,priority:4"`
	Status            string          `gorm:"size:20;not null;default:'in_progress';index"`
	TotalMiles        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalGallons      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	QuarterlyReportID uint            `gorm:"not null;index"`
	Quarterly         *quarterlyModel `gorm:"foreignKey:QuarterlyReportID;constraint:OnDelete:CASCADE"`
	Notes             string          `gorm:"type:text"`
	SubmittedAt       *time.Time
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time `gorm:"index"`
}

func (reportModel) TableName() string { return "ifta_reports" }

type reportStateModel struct {
	ID        uint            `gorm:"primaryKey"`
	ReportID  uint            `gorm:"not null;index"`
	Report    *reportModel    `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	StateCode string          `gorm:"size:2;not null"`
	Miles     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Gallons   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt time.Time
}

func (reportStateModel) TableName() string { return "ifta_report_states" }

type attachmentModel struct {
	ID          uint         `gorm:"primaryKey"`
	ReportID    uint         `gorm:"not null;index"`
	Report      *reportModel `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	FileName    string       `gorm:"size:255;not null"`
	MimeType    string       `gorm:"size:100"`
	SizeBytes   int64
	StoragePath string `gorm:"size:512;not null"`
	CreatedAt   time.Time
}

func (attachmentModel) TableName() string { return "ifta_report_attachments" }

// notDeleted is applied by every read of a soft-deletable table.
func notDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

// ============================================================
// Model <-> domain mapping
// ============================================================

func (m *companyModel) toDomain() *domain.Company {
	emails := []string(m.DistributionEmails)
	if emails == nil {
		emails = []string{}
	}
	return &domain.Company{
		ID:                 m.ID,
		Name:               m.Name,
		ContactEmail:       m.ContactEmail,
		DistributionEmails: emails,
		IsActive:           m.IsActive,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		CompanyID:    m.CompanyID,
		IsActive:     m.IsActive,
		LastLoginAt:  m.LastLoginAt,
		CreatedAt:    m.CreatedAt,
	}
}

func (m *vehicleModel) toDomain() *domain.Vehicle {
	return &domain.Vehicle{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		LicensePlate: m.LicensePlate,
		LicenseState: m.LicenseState,
		Make:         m.Make,
		Model:        m.Model,
		Year:         m.Year,
		FuelType:     domain.FuelType(m.FuelType),
		CreatedAt:    m.CreatedAt,
	}
}

func (m *quarterlyModel) toDomain() *domain.QuarterlyReport {
	return &domain.QuarterlyReport{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Year:      m.Year,
		Quarter:   m.Quarter,
		Status:    domain.QuarterlyStatus(m.Status),
		StatusStamps: domain.StatusStamps{
			SubmittedAt: m.SubmittedAt,
			ApprovedAt:  m.ApprovedAt,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m *reportModel) toDomain(states []reportStateModel, attachments []attachmentModel) *domain.MonthlyReport {
	r := &domain.MonthlyReport{
		ID:                m.ID,
		CompanyID:         m.CompanyID,
		VehiclePlate:      m.VehiclePlate,
		ReportYear:        m.ReportYear,
		ReportMonth:       m.ReportMonth,
		Status:            domain.ReportStatus(m.Status),
		TotalMiles:        m.TotalMiles,
		TotalGallons:      m.TotalGallons,
		QuarterlyReportID: m.QuarterlyReportID,
		Notes:             m.Notes,
		StatusStamps: domain.StatusStamps{
			SubmittedAt: m.SubmittedAt,
			ApprovedAt:  m.ApprovedAt,
		},
		States:    make([]domain.ReportState, 0, len(states)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, s := range states {
		r.States = append(r.States, domain.ReportState{
			ID:        s.ID,
			ReportID:  s.ReportID,
			StateCode: s.StateCode,
			Miles:     s.Miles,
			Gallons:   s.Gallons,
			MPG:       domain.DerivedMPG(s.Miles, s.Gallons),
		})
	}
	for _, a := range attachments {
		r.Attachments = append(r.Attachments, *a.toDomain())
	}
	return r
}

func (m *attachmentModel) toDomain() *domain.ReportAttachment {
	return &domain.ReportAttachment{
		ID:          m.ID,
		ReportID:    m.ReportID,
		FileName:    m.FileName,
		MimeType:    m.MimeType,
		SizeBytes:   m.SizeBytes,
		StoragePath: m.StoragePath,
		CreatedAt:   m.CreatedAt,
	}
}
