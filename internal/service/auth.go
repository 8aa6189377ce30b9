// Package service: AuthService handles registration, login, JWT access
// tokens and resolving the request principal.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const (
	defaultBcryptCost = 12
	tokenIssuer       = "ifta-api"
)

// AuthConfig tunes the auth service.
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	BcryptCost int
}

// AuthService orchestrates authentication flows.
type AuthService struct {
	users     port.UserStore
	companies port.CompanyStore
	tx        port.Transactor
	jwtSecret []byte
	accessTTL time.Duration
	hashCost  int
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users port.UserStore, companies port.CompanyStore, tx port.Transactor, cfg AuthConfig, logger *zap.Logger) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = defaultBcryptCost
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		companies: companies,
		tx:        tx,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: ttl,
		hashCost:  cost,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================
// Me: GET /v1/auth/me
// ============================================================

func (s *AuthService) Me(ctx context.Context, p *domain.Principal) (*domain.MeResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Me")
	defer span.End()

	if p == nil {
		return nil, &domain.ErrUnauthorized{Message: "authentication required"}
	}
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp := &domain.MeResponse{User: user}
	if user.CompanyID != nil {
		company, err := s.companies.GetCompany(ctx, *user.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("get company: %w", err)
		}
		resp.Company = company
	}
	return resp, nil
}

// ============================================================
// EnsureAdmin: bootstrap from configuration
// ============================================================

// EnsureAdmin creates the configured admin account when it does not exist.
// An empty email disables bootstrapping.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.EnsureAdmin")
	defer span.End()

	if email == "" {
		return nil
	}
	email, err := normalizeEmail("admin_email", email)
	if err != nil {
		return err
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find admin: %w", err)
	}
	if existing != nil {
		if existing.Role != domain.RoleAdmin {
			s.logger.Warn("bootstrap admin email belongs to a non-admin user", zap.String("email", email))
		}
		return nil
	}

	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	admin := &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", zap.Uint("user_id", admin.ID), zap.String("email", email))
	return nil
}
