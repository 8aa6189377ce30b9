package service

import (
	"sort"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"github.com/shopspring/decimal"
)

// presentationPlaces is the precision of every value in a summary response.
const presentationPlaces = 2

// BuildQuarterlySummary aggregates the qualifying monthly reports of one
// quarter. Sums run at stored precision; rounding happens only when the
// response values are produced.
func BuildQuarterlySummary(companyID uint, year, quarter int, q *domain.QuarterlyReport, reports []domain.MonthlyReport) *domain.QuarterlySummary {
	out := &domain.QuarterlySummary{
		CompanyID:     companyID,
		Year:          year,
		Quarter:       quarter,
		Reports:       make([]domain.ReportSummary, 0, len(reports)),
		Jurisdictions: []domain.JurisdictionTotal{},
		Vehicles:      []domain.VehicleSummary{},
	}
	if q != nil {
		qq := *q
		qq.Status = qq.Status.Normalize()
		out.Quarterly = &qq
	}

	type acc struct {
		miles, gallons decimal.Decimal
	}
	type vehicleAcc struct {
		acc
		months map[int]*acc
		states map[string]struct{}
	}

	byState := map[string]*acc{}
	byVehicle := map[string]*vehicleAcc{}
	var total acc

	for i := range reports {
		r := &reports[i]
		if !r.Status.IsQualifying() {
			continue
		}

		rs := domain.ReportSummary{
			ID:           r.ID,
			VehiclePlate: r.VehiclePlate,
			ReportMonth:  r.ReportMonth,
			Status:       r.Status,
			TotalMiles:   round(r.TotalMiles),
			TotalGallons: round(r.TotalGallons),
			MPG:          domain.DerivedMPG(r.TotalMiles, r.TotalGallons),
			States:       make([]domain.JurisdictionTotal, 0, len(r.States)),
		}

		v, ok := byVehicle[r.VehiclePlate]
		if !ok {
			v = &vehicleAcc{months: map[int]*acc{}, states: map[string]struct{}{}}
			byVehicle[r.VehiclePlate] = v
		}
		m, ok := v.months[r.ReportMonth]
		if !ok {
			m = &acc{}
			v.months[r.ReportMonth] = m
		}

		for _, line := range r.States {
			rs.States = append(rs.States, jurisdiction(line.StateCode, line.Miles, line.Gallons))

			s, ok := byState[line.StateCode]
			if !ok {
				s = &acc{}
				byState[line.StateCode] = s
			}
			s.miles = s.miles.Add(line.Miles)
			s.gallons = s.gallons.Add(line.Gallons)
			v.states[line.StateCode] = struct{}{}
		}

		m.miles = m.miles.Add(r.TotalMiles)
		m.gallons = m.gallons.Add(r.TotalGallons)
		v.miles = v.miles.Add(r.TotalMiles)
		v.gallons = v.gallons.Add(r.TotalGallons)
		total.miles = total.miles.Add(r.TotalMiles)
		total.gallons = total.gallons.Add(r.TotalGallons)

		out.Reports = append(out.Reports, rs)
	}

	// Ordered by unrounded miles so rounding never reorders ties.
	codes := make([]string, 0, len(byState))
	for code := range byState {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := byState[codes[i]], byState[codes[j]]
		if c := a.miles.Cmp(b.miles); c != 0 {
			return c > 0
		}
		return codes[i] < codes[j]
	})
	for _, code := range codes {
		s := byState[code]
		out.Jurisdictions = append(out.Jurisdictions, jurisdiction(code, s.miles, s.gallons))
	}

	plates := make([]string, 0, len(byVehicle))
	for plate := range byVehicle {
		plates = append(plates, plate)
	}
	sort.Strings(plates)
	for _, plate := range plates {
		v := byVehicle[plate]
		vs := domain.VehicleSummary{
			VehiclePlate:  plate,
			Months:        make([]domain.MonthTotal, 0, len(v.months)),
			TotalMiles:    round(v.miles),
			TotalGallons:  round(v.gallons),
			MPG:           domain.DerivedMPG(v.miles, v.gallons),
			Jurisdictions: make([]string, 0, len(v.states)),
		}
		for month, m := range v.months {
			vs.Months = append(vs.Months, domain.MonthTotal{
				Month:   month,
				Miles:   round(m.miles),
				Gallons: round(m.gallons),
			})
		}
		sort.Slice(vs.Months, func(i, j int) bool { return vs.Months[i].Month < vs.Months[j].Month })
		for code := range v.states {
			vs.Jurisdictions = append(vs.Jurisdictions, code)
		}
		sort.Strings(vs.Jurisdictions)
		out.Vehicles = append(out.Vehicles, vs)
	}

	sort.SliceStable(out.Reports, func(i, j int) bool {
		a, b := out.Reports[i], out.Reports[j]
		if a.ReportMonth != b.ReportMonth {
			return a.ReportMonth < b.ReportMonth
		}
		return a.VehiclePlate < b.VehiclePlate
	})

	out.Totals = domain.Totals{
		ReportCount:  len(out.Reports),
		TotalMiles:   round(total.miles),
		TotalGallons: round(total.gallons),
		MPG:          domain.DerivedMPG(total.miles, total.gallons),
	}
	return out
}

func jurisdiction(code string, miles, gallons decimal.Decimal) domain.JurisdictionTotal {
	return domain.JurisdictionTotal{
		StateCode: code,
		Miles:     round(miles),
		Gallons:   round(gallons),
		MPG:       domain.DerivedMPG(miles, gallons),
	}
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(presentationPlaces)
}
