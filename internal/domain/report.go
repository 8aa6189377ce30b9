package domain

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Monthly reports
// ============================================================

// MonthlyReport is one vehicle's IFTA record for a calendar month.
// (CompanyID, VehiclePlate, ReportYear, ReportMonth) is unique.
type MonthlyReport struct {
	ID                uint               `json:"id"`
	CompanyID         uint               `json:"company_id"`
	VehiclePlate      string             `json:"vehicle_plate"`
	ReportYear        int                `json:"report_year"`
	ReportMonth       int                `json:"report_month"`
	Status            ReportStatus       `json:"status"`
	TotalMiles        decimal.Decimal    `json:"total_miles"`
	TotalGallons      decimal.Decimal    `json:"total_gallons"`
	QuarterlyReportID uint               `json:"quarterly_report_id"`
	Notes             string             `json:"notes,omitempty"`
	States            []ReportState      `json:"states"`
	Attachments       []ReportAttachment `json:"attachments,omitempty"`
	StatusStamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quarter returns the filing quarter the report belongs to.
func (r *MonthlyReport) Quarter() int {
	return QuarterOf(r.ReportMonth)
}

// ReportState is a per-jurisdiction line of a monthly report.
type ReportState struct {
	ID        uint             `json:"id"`
	ReportID  uint             `json:"report_id"`
	StateCode string           `json:"state_code"`
	Miles     decimal.Decimal  `json:"miles"`
	Gallons   decimal.Decimal  `json:"gallons"`
	MPG       *decimal.Decimal `json:"mpg"`
}

// ReportAttachment is the metadata of an uploaded file. The content lives in
// blob storage under StoragePath.
type ReportAttachment struct {
	ID          uint      `json:"id"`
	ReportID    uint      `json:"report_id"`
	FileName    string    `json:"file_name"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ============================================================
// Quarterly reports
// ============================================================

// QuarterlyReport groups a company's monthly reports for one filing quarter.
// (CompanyID, Year, Quarter) is unique.
type QuarterlyReport struct {
	ID        uint            `json:"id"`
	CompanyID uint            `json:"company_id"`
	Year      int             `json:"year"`
	Quarter   int             `json:"quarter"`
	Status    QuarterlyStatus `json:"status"`
	StatusStamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuarterOf returns the quarter (1-4) containing month (1-12).
func QuarterOf(month int) int {
	return (month-1)/3 + 1
}

// QuarterMonths returns the first and last month of quarter q.
func QuarterMonths(q int) (first, last int) {
	first = (q-1)*3 + 1
	return first, first + 2
}

// DerivedMPG returns miles/gallons rounded to 2 places, or nil when gallons
// is zero.
func DerivedMPG(miles, gallons decimal.Decimal) *decimal.Decimal {
	if gallons.IsZero() {
		return nil
	}
	mpg := miles.DivRound(gallons, 2)
	return &mpg
}

// ============================================================
// Requests
// ============================================================

// StateLineInput is one jurisdiction line of a create request.
type StateLineInput struct {
	StateCode string          `json:"state_code"`
	Miles     decimal.Decimal `json:"miles"`
	Gallons   decimal.Decimal `json:"gallons"`
}

// CreateReportRequest is the typed body of POST /v1/ifta-reports.
// CompanyID is optional for non-admin callers.
type CreateReportRequest struct {
	CompanyID    *uint            `json:"company_id,omitempty"`
	VehiclePlate string           `json:"vehicle_plate"`
	ReportYear   int              `json:"report_year"`
	ReportMonth  int              `json:"report_month"`
	Notes        string           `json:"notes,omitempty"`
	States       []StateLineInput `json:"states"`
}

// UpdateStatusRequest is the body of the status PATCH endpoints.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ReportFilter narrows report listings. Zero values mean "any".
type ReportFilter struct {
	CompanyID uint
	Year      int
	Quarter   int
	Status    ReportStatus
}

// AttachmentUpload is a file received with a create request.
type AttachmentUpload struct {
	FileName string
	MimeType string
	Content  io.Reader
}
