package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_ACCESS_TTL", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.MaxRetries, "unparsable values fall back")
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Port = 0
	cfg.BcryptCost = 2
	cfg.AdminEmail = "root@ifta.test"
	cfg.AdminPassword = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "BCRYPT_COST")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("IFTA_TEST_A=from-file\nIFTA_TEST_B=from-file\n"), 0o600))

	t.Setenv("IFTA_TEST_B", "from-env")
	os.Unsetenv("IFTA_TEST_A")
	t.Cleanup(func() { os.Unsetenv("IFTA_TEST_A") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("IFTA_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("IFTA_TEST_B"), "existing env wins")

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
