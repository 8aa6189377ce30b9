package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

// Register creates a company and its first user in one transaction.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "company_name", Message: "is required"}
	}
	email, err := normalizeEmail("email", req.Email)
	if err != nil {
		return nil, err
	}
	contact := email
	if strings.TrimSpace(req.ContactEmail) != "" {
		if contact, err = normalizeEmail("contact_email", req.ContactEmail); err != nil {
			return nil, err
		}
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	company := &domain.Company{Name: name, ContactEmail: contact}
	user := &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleUser}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.companies.CreateCompany(ctx, company); err != nil {
			return err
		}
		user.CompanyID = &company.ID
		return s.users.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("register company: %w", err)
	}

	token, err := s.signAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("company registered",
		zap.Uint("company_id", company.ID),
		zap.Uint("user_id", user.ID),
	)

	return &domain.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user,
		Company:     company,
	}, nil
}
