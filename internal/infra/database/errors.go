package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"gorm.io/gorm"
)

// isUniqueViolation recognizes a unique constraint failure from either
// dialect. TranslateError covers postgres; the SQLite driver reports the
// violation only in the message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}

// lookupErr maps gorm.ErrRecordNotFound to the domain error and wraps
// anything else with the operation name.
func lookupErr(err error, resource string, id uint, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ErrNotFound{Resource: resource, ID: strconv.FormatUint(uint64(id), 10)}
	}
	return fmt.Errorf("%s: %w", op, err)
}
