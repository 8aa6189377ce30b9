package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/infra/cache"
	"github.com/boddenberg/ifta-reports-go/internal/infra/database"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Fakes ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Template)
	}
	return out
}

// memBlobs is an in-memory blob store. When failOn > 0 the failOn-th Save
// fails.
type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	failOn  int
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Save(_ context.Context, key string, content io.Reader) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.failOn > 0 && b.saves == b.failOn {
		return 0, errors.New("disk full")
	}
	buf, err := io.ReadAll(content)
	if err != nil {
		return 0, err
	}
	b.data[key] = buf
	return int64(len(buf)), nil
}

func (b *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.data[key]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "attachment", ID: key}
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memBlobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// --- Fixture ---

type testEnv struct {
	db        *database.DB
	blobs     *memBlobs
	notes     *recordingNotifier
	auth      *service.AuthService
	companies *service.CompanyService
	vehicles  *service.VehicleService
	quarterly *service.QuarterlyService
	reports   *service.ReportService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.Open(database.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	summaries := cache.New[*domain.QuarterlySummary](time.Minute)
	t.Cleanup(summaries.Close)

	metrics := observability.NewMetrics()
	blobs := newMemBlobs()
	notes := &recordingNotifier{}

	quarterly := service.NewQuarterlyService(db, db, db, summaries, notes, metrics, logger)
	return &testEnv{
		db:    db,
		blobs: blobs,
		notes: notes,
		auth: service.NewAuthService(db, db, db, service.AuthConfig{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			BcryptCost: bcrypt.MinCost,
		}, logger),
		companies: service.NewCompanyService(db, logger),
		vehicles:  service.NewVehicleService(db, logger),
		quarterly: quarterly,
		reports:   service.NewReportService(db, db, db, quarterly, blobs, db, notes, metrics, logger),
	}
}

// tenant creates a company with one vehicle and returns a user principal
// for it.
func (e *testEnv) tenant(t *testing.T, name, plate string) (*domain.Company, *domain.Principal) {
	t.Helper()
	ctx := context.Background()
	c := &domain.Company{Name: name, ContactEmail: "ops@" + name + ".test"}
	require.NoError(t, e.db.CreateCompany(ctx, c))
	require.NoError(t, e.db.CreateVehicle(ctx, &domain.Vehicle{
		CompanyID:    c.ID,
		LicensePlate: plate,
		LicenseState: "TX",
		FuelType:     domain.FuelDiesel,
	}))
	id := c.ID
	return c, &domain.Principal{UserID: 1, CompanyID: &id, Role: domain.RoleUser}
}

func admin() *domain.Principal {
	return &domain.Principal{UserID: 99, Role: domain.RoleAdmin}
}

func line(code string, miles, gallons int64) domain.StateLineInput {
	return domain.StateLineInput{
		StateCode: code,
		Miles:     decimal.NewFromInt(miles),
		Gallons:   decimal.NewFromInt(gallons),
	}
}

func reportReq(plate string, year, month int, states ...domain.StateLineInput) *domain.CreateReportRequest {
	return &domain.CreateReportRequest{
		VehiclePlate: plate,
		ReportYear:   year,
		ReportMonth:  month,
		States:       states,
	}
}

func upload(name, body string) domain.AttachmentUpload {
	return domain.AttachmentUpload{FileName: name, MimeType: "application/pdf", Content: bytes.NewBufferString(body)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireErrAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, errors.As(err, &target), "expected %T, got %v", target, err)
	return target
}

func fmtMPG(d *decimal.Decimal) string {
	if d == nil {
		return "<nil>"
	}
	return d.StringFixed(2)
}
