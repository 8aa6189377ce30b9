// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (gorm stores, disk blobs, HTTP email).
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
)

// Transactor runs fn inside a database transaction carried by the context
// passed to fn. Nested calls join the outer transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CompanyStore persists tenants.
type CompanyStore interface {
	CreateCompany(ctx context.Context, c *domain.Company) error
	GetCompany(ctx context.Context, id uint) (*domain.Company, error)
	ListCompanies(ctx context.Context) ([]domain.Company, error)
	UpdateDistributionEmails(ctx context.Context, id uint, emails []string) error
}

// UserStore persists login identities.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id uint) (*domain.User, error)
	// FindUserByEmail returns nil, nil when no user has the address.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// VehicleStore persists the vehicle registry.
type VehicleStore interface {
	CreateVehicle(ctx context.Context, v *domain.Vehicle) error
	GetVehicle(ctx context.Context, id uint) (*domain.Vehicle, error)
	// FindVehicleByPlate returns nil, nil when the company has no such plate.
	FindVehicleByPlate(ctx context.Context, companyID uint, plate string) (*domain.Vehicle, error)
	ListVehicles(ctx context.Context, companyID uint) ([]domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uint) error
}

// ReportStore persists monthly reports, their jurisdiction lines and
// attachment metadata.
type ReportStore interface {
	// CreateReport inserts the report and its States. A duplicate period
	// yields *domain.ErrConflict.
	CreateReport(ctx context.Context, r *domain.MonthlyReport) error
	GetReport(ctx context.Context, id uint) (*domain.MonthlyReport, error)
	ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.MonthlyReport, error)
	// ListQuarterReports returns the reports of a quarter whose status is in
	// statuses, with their States loaded.
	ListQuarterReports(ctx context.Context, companyID uint, year, quarter int, statuses []domain.ReportStatus) ([]domain.MonthlyReport, error)
	UpdateReportStatus(ctx context.Context, r *domain.MonthlyReport) error
	DeleteReport(ctx context.Context, id uint) error
	AddAttachment(ctx context.Context, a *domain.ReportAttachment) error
	GetAttachment(ctx context.Context, reportID, attachmentID uint) (*domain.ReportAttachment, error)
}

// QuarterlyStore persists quarterly aggregates.
type QuarterlyStore interface {
	// FindQuarterly returns nil, nil when the quarter has no row yet.
	FindQuarterly(ctx context.Context, companyID uint, year, quarter int) (*domain.QuarterlyReport, error)
	// InsertQuarterlyIfAbsent inserts q unless a row for its period exists.
	// It reports whether this call inserted the row.
	InsertQuarterlyIfAbsent(ctx context.Context, q *domain.QuarterlyReport) (bool, error)
	GetQuarterly(ctx context.Context, id uint) (*domain.QuarterlyReport, error)
	ListQuarterly(ctx context.Context, companyID uint) ([]domain.QuarterlyReport, error)
	UpdateQuarterlyStatus(ctx context.Context, q *domain.QuarterlyReport) error
	// DeleteQuarterly removes the quarter and, by cascade, its monthly reports.
	DeleteQuarterly(ctx context.Context, id uint) error
}

// BlobStore holds attachment contents addressed by key.
type BlobStore interface {
	Save(ctx context.Context, key string, content io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Notifier hands a notification to the email dispatcher. Implementations
// must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Version(key string) uint64
	SetIfVersion(key string, value T, version uint64) bool
}
