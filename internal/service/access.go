package service

import (
	"github.com/boddenberg/ifta-reports-go/internal/domain"
)

// AssertCompanyAccess lets admins through and otherwise requires the
// principal to belong to companyID.
func AssertCompanyAccess(p *domain.Principal, companyID uint) error {
	if p == nil {
		return &domain.ErrUnauthorized{Message: "authentication required"}
	}
	if p.IsAdmin() {
		return nil
	}
	if p.CompanyID == nil || *p.CompanyID != companyID {
		return &domain.ErrForbidden{Action: "access company data"}
	}
	return nil
}

// resolveCompanyID picks the company an operation targets: the requested
// one after an access check, else the caller's own. Admins without a
// company must name one.
func resolveCompanyID(p *domain.Principal, requested *uint) (uint, error) {
	if requested != nil && *requested != 0 {
		if err := AssertCompanyAccess(p, *requested); err != nil {
			return 0, err
		}
		return *requested, nil
	}
	if p == nil {
		return 0, &domain.ErrUnauthorized{Message: "authentication required"}
	}
	if p.CompanyID == nil {
		return 0, &domain.ErrValidation{Field: "company_id", Message: "is required"}
	}
	return *p.CompanyID, nil
}
