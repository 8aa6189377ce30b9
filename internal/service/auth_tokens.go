package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ============================================================
// ValidateToken: used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	CompanyID *uint       `json:"company_id,omitempty"`
	Role      domain.Role `json:"role"`
	Type      string      `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *JWTClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, &domain.ErrUnauthorized{Message: "invalid token subject"}
	}
	return uint(id), nil
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	return claims, nil
}

// ResolvePrincipal re-validates the token's user against the store and
// builds the principal from the persisted record. The token claims fill
// in only what the record leaves empty.
func (s *AuthService) ResolvePrincipal(ctx context.Context, claims *JWTClaims) (*domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ResolvePrincipal")
	defer span.End()

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrUnauthorized{Message: "user no longer exists"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		s.logger.Warn("auth: token for inactive user", zap.Uint("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: "account is disabled"}
	}

	p := &domain.Principal{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
	if p.Role == "" {
		p.Role = claims.Role
	}
	if p.CompanyID == nil && p.Role != domain.RoleAdmin {
		p.CompanyID = claims.CompanyID
	}
	return p, nil
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (s *AuthService) signAccessToken(u *domain.User) (string, error) {
	now := s.now()
	claims := JWTClaims{
		CompanyID: u.CompanyID,
		Role:      u.Role,
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
