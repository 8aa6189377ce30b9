package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var companyTracer = otel.Tracer("service/company")

// maxDistributionEmails bounds the distribution list of one company.
const maxDistributionEmails = 50

// CompanyService manages tenants and their distribution lists.
type CompanyService struct {
	companies port.CompanyStore
	logger    *zap.Logger
}

func NewCompanyService(companies port.CompanyStore, logger *zap.Logger) *CompanyService {
	return &CompanyService{companies: companies, logger: logger}
}

// ListCompanies is admin only.
func (s *CompanyService) ListCompanies(ctx context.Context, p *domain.Principal) ([]domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.ListCompanies")
	defer span.End()

	if p == nil {
		return nil, &domain.ErrUnauthorized{Message: "authentication required"}
	}
	if !p.IsAdmin() {
		return nil, &domain.ErrForbidden{Action: "list companies"}
	}
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

func (s *CompanyService) GetCompany(ctx context.Context, p *domain.Principal, companyID uint) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.Int("company.id", int(companyID)))

	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	return s.companies.GetCompany(ctx, companyID)
}

// GetDistributionEmails returns the company's list, never nil.
func (s *CompanyService) GetDistributionEmails(ctx context.Context, p *domain.Principal, companyID uint) ([]string, error) {
	company, err := s.GetCompany(ctx, p, companyID)
	if err != nil {
		return nil, err
	}
	if company.DistributionEmails == nil {
		return []string{}, nil
	}
	return company.DistributionEmails, nil
}

// UpdateDistributionEmails replaces the list. Addresses are lowercased,
// validated and deduplicated in input order.
func (s *CompanyService) UpdateDistributionEmails(ctx context.Context, p *domain.Principal, companyID uint, emails []string) ([]string, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.UpdateDistributionEmails")
	defer span.End()

	if err := AssertCompanyAccess(p, companyID); err != nil {
		return nil, err
	}
	if len(emails) > maxDistributionEmails {
		return nil, &domain.ErrValidation{
			Field:   "emails",
			Message: fmt.Sprintf("at most %d addresses allowed", maxDistributionEmails),
		}
	}

	seen := make(map[string]struct{}, len(emails))
	clean := make([]string, 0, len(emails))
	for _, raw := range emails {
		email, err := normalizeEmail("emails", raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		clean = append(clean, email)
	}

	if err := s.companies.UpdateDistributionEmails(ctx, companyID, clean); err != nil {
		return nil, fmt.Errorf("update distribution emails: %w", err)
	}

	s.logger.Info("distribution emails updated",
		zap.Uint("company_id", companyID),
		zap.Int("count", len(clean)),
	)
	return clean, nil
}
