package service_test

import (
	"testing"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthly(id uint, plate string, month int, status domain.ReportStatus, lines ...domain.ReportState) domain.MonthlyReport {
	r := domain.MonthlyReport{
		ID:           id,
		VehiclePlate: plate,
		ReportYear:   2025,
		ReportMonth:  month,
		Status:       status,
		States:       lines,
	}
	for _, l := range lines {
		r.TotalMiles = r.TotalMiles.Add(l.Miles)
		r.TotalGallons = r.TotalGallons.Add(l.Gallons)
	}
	return r
}

func state(code, miles, gallons string) domain.ReportState {
	return domain.ReportState{StateCode: code, Miles: dec(miles), Gallons: dec(gallons)}
}

func TestBuildQuarterlySummary(t *testing.T) {
	reports := []domain.MonthlyReport{
		monthly(1, "TRK2", 2, domain.ReportSent, state("OK", "100", "20")),
		monthly(2, "TRK1", 1, domain.ReportInProgress, state("TX", "60.00", "20"), state("OK", "0", "0")),
		monthly(3, "TRK1", 2, domain.ReportCompleted, state("TX", "40.01", "0")),
		monthly(4, "TRK1", 3, domain.ReportRejected, state("NM", "5000", "100")),
	}

	s := service.BuildQuarterlySummary(7, 2025, 1, nil, reports)

	assert.Nil(t, s.Quarterly)
	assert.Equal(t, 3, s.Totals.ReportCount)

	// TX: 60.00 + 40.01 beats OK's 100 by a cent.
	require.Len(t, s.Jurisdictions, 2)
	assert.Equal(t, "TX", s.Jurisdictions[0].StateCode)
	assert.Equal(t, "100.01", s.Jurisdictions[0].Miles.StringFixed(2))
	assert.Equal(t, "OK", s.Jurisdictions[1].StateCode)

	require.Len(t, s.Vehicles, 2)
	assert.Equal(t, "TRK1", s.Vehicles[0].VehiclePlate)
	assert.Equal(t, []string{"OK", "TX"}, s.Vehicles[0].Jurisdictions)
	require.Len(t, s.Vehicles[0].Months, 2)
	assert.Equal(t, 1, s.Vehicles[0].Months[0].Month)
	assert.Equal(t, 2, s.Vehicles[0].Months[1].Month)

	// Reports come out by month, then plate.
	assert.Equal(t, uint(2), s.Reports[0].ID)
	assert.Equal(t, uint(3), s.Reports[1].ID)
	assert.Nil(t, s.Reports[1].MPG, "zero gallons has no mpg")
	assert.Equal(t, "TRK2", s.Reports[2].VehiclePlate)
	assert.Equal(t, "5.00", fmtMPG(s.Reports[2].MPG))
}

func TestBuildQuarterlySummary_SeparateMonthlyReports(t *testing.T) {
	reports := []domain.MonthlyReport{
		monthly(1, "TRK1", 1, domain.ReportSent, state("TX", "100", "20")),
		monthly(2, "TRK1", 2, domain.ReportSent, state("TX", "50", "10")),
		monthly(3, "TRK1", 3, domain.ReportSent, state("CA", "200", "40")),
	}

	s := service.BuildQuarterlySummary(1, 2025, 1, nil, reports)

	require.Len(t, s.Jurisdictions, 2)
	ca, tx := s.Jurisdictions[0], s.Jurisdictions[1]
	assert.Equal(t, "CA", ca.StateCode)
	assert.Equal(t, "200.00", ca.Miles.StringFixed(2))
	assert.Equal(t, "40.00", ca.Gallons.StringFixed(2))
	assert.Equal(t, "5.00", fmtMPG(ca.MPG))
	assert.Equal(t, "TX", tx.StateCode)
	assert.Equal(t, "150.00", tx.Miles.StringFixed(2))
	assert.Equal(t, "30.00", tx.Gallons.StringFixed(2))
	assert.Equal(t, "5.00", fmtMPG(tx.MPG))

	assert.Equal(t, 3, s.Totals.ReportCount)
	assert.Equal(t, "350.00", s.Totals.TotalMiles.StringFixed(2))
	assert.Equal(t, "70.00", s.Totals.TotalGallons.StringFixed(2))
	assert.Equal(t, "5.00", fmtMPG(s.Totals.MPG))

	require.Len(t, s.Vehicles, 1)
	assert.Equal(t, []string{"CA", "TX"}, s.Vehicles[0].Jurisdictions)
	assert.Len(t, s.Vehicles[0].Months, 3)
}

func TestBuildQuarterlySummary_TiesOrderedByStateCode(t *testing.T) {
	reports := []domain.MonthlyReport{
		monthly(1, "TRK1", 4, domain.ReportSent, state("WY", "50", "10"), state("CO", "50", "10")),
	}
	s := service.BuildQuarterlySummary(1, 2025, 2, nil, reports)

	require.Len(t, s.Jurisdictions, 2)
	assert.Equal(t, "CO", s.Jurisdictions[0].StateCode)
	assert.Equal(t, "WY", s.Jurisdictions[1].StateCode)
}

func TestBuildQuarterlySummary_Empty(t *testing.T) {
	header := &domain.QuarterlyReport{ID: 3, Status: domain.LegacyApproved}
	s := service.BuildQuarterlySummary(1, 2025, 2, header, nil)

	require.NotNil(t, s.Quarterly)
	assert.Equal(t, domain.QuarterlyCompleted, s.Quarterly.Status)
	assert.Equal(t, domain.LegacyApproved, header.Status, "input header untouched")
	assert.Empty(t, s.Jurisdictions)
	assert.Empty(t, s.Vehicles)
	assert.True(t, s.Totals.TotalMiles.Equal(decimal.Zero))
	assert.Nil(t, s.Totals.MPG)
}
