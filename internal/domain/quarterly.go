package domain

import "github.com/shopspring/decimal"

// ============================================================
// Quarterly summary (GET /v1/quarterly-reports/company/.../quarter/.../year/...)
// ============================================================

// QuarterlySummary is the aggregated view of a company's filing quarter.
// Quarterly is nil when no monthly report has been filed for the quarter yet.
type QuarterlySummary struct {
	CompanyID     uint                `json:"company_id"`
	Year          int                 `json:"year"`
	Quarter       int                 `json:"quarter"`
	Quarterly     *QuarterlyReport    `json:"quarterly_report"`
	Reports       []ReportSummary     `json:"reports"`
	Jurisdictions []JurisdictionTotal `json:"jurisdictions"`
	Vehicles      []VehicleSummary    `json:"vehicles"`
	Totals        Totals              `json:"totals"`
}

// ReportSummary is a monthly report as presented in a quarterly summary.
type ReportSummary struct {
	ID           uint                `json:"id"`
	VehiclePlate string              `json:"vehicle_plate"`
	ReportMonth  int                 `json:"report_month"`
	Status       ReportStatus        `json:"status"`
	TotalMiles   decimal.Decimal     `json:"total_miles"`
	TotalGallons decimal.Decimal     `json:"total_gallons"`
	MPG          *decimal.Decimal    `json:"mpg"`
	States       []JurisdictionTotal `json:"states"`
}

// JurisdictionTotal is miles and gallons for one state code.
type JurisdictionTotal struct {
	StateCode string           `json:"state_code"`
	Miles     decimal.Decimal  `json:"total_miles"`
	Gallons   decimal.Decimal  `json:"total_gallons"`
	MPG       *decimal.Decimal `json:"mpg"`
}

// VehicleSummary is one plate's activity across the quarter.
type VehicleSummary struct {
	VehiclePlate  string           `json:"vehicle_plate"`
	Months        []MonthTotal     `json:"months"`
	TotalMiles    decimal.Decimal  `json:"total_miles"`
	TotalGallons  decimal.Decimal  `json:"total_gallons"`
	MPG           *decimal.Decimal `json:"mpg"`
	Jurisdictions []string         `json:"jurisdictions"`
}

// MonthTotal is a vehicle's totals for one month.
type MonthTotal struct {
	Month   int             `json:"month"`
	Miles   decimal.Decimal `json:"total_miles"`
	Gallons decimal.Decimal `json:"total_gallons"`
}

// Totals is the overall sum across qualifying reports.
type Totals struct {
	ReportCount  int              `json:"report_count"`
	TotalMiles   decimal.Decimal  `json:"total_miles"`
	TotalGallons decimal.Decimal  `json:"total_gallons"`
	MPG          *decimal.Decimal `json:"mpg"`
}
