package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"gorm.io/gorm"
)

// ============================================================
// Users
// ============================================================

func (db *DB) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "DB.CreateUser")
	defer span.End()

	m := userModel{
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CompanyID:    u.CompanyID,
		IsActive:     true,
	}
	if err := db.conn(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "email already registered"}
		}
		return fmt.Errorf("create user: %w", err)
	}
	*u = *m.toDomain()
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "DB.GetUserByID")
	defer span.End()

	var m userModel
	if err := db.conn(ctx).Scopes(notDeleted).First(&m, id).Error; err != nil {
		return nil, lookupErr(err, "user", id, "get user")
	}
	return m.toDomain(), nil
}

func (db *DB) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "DB.FindUserByEmail")
	defer span.End()

	var m userModel
	err := db.conn(ctx).Scopes(notDeleted).
		Where("email = ?", strings.ToLower(email)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return m.toDomain(), nil
}

func (db *DB) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	ctx, span := tracer.Start(ctx, "DB.TouchLastLogin")
	defer span.End()

	err := db.conn(ctx).Model(&userModel{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}
