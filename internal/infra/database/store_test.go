package database

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedCompany(t *testing.T, db *DB, name string) *domain.Company {
	t.Helper()
	c := &domain.Company{Name: name, ContactEmail: "ops@" + name + ".test"}
	require.NoError(t, db.CreateCompany(context.Background(), c))
	return c
}

func seedQuarter(t *testing.T, db *DB, companyID uint, year, quarter int) *domain.QuarterlyReport {
	t.Helper()
	q := &domain.QuarterlyReport{CompanyID: companyID, Year: year, Quarter: quarter, Status: domain.QuarterlyInProgress}
	inserted, err := db.InsertQuarterlyIfAbsent(context.Background(), q)
	require.NoError(t, err)
	require.True(t, inserted)
	return q
}

func newReport(companyID, quarterlyID uint, plate string, month int, status domain.ReportStatus) *domain.MonthlyReport {
	return &domain.MonthlyReport{
		CompanyID:         companyID,
		VehiclePlate:      plate,
		ReportYear:        2025,
		ReportMonth:       month,
		Status:            status,
		TotalMiles:        decimal.NewFromInt(150),
		TotalGallons:      decimal.NewFromInt(30),
		QuarterlyReportID: quarterlyID,
		States: []domain.ReportState{
			{StateCode: "TX", Miles: decimal.NewFromInt(100), Gallons: decimal.NewFromInt(20)},
			{StateCode: "OK", Miles: decimal.NewFromInt(50), Gallons: decimal.NewFromInt(10)},
		},
	}
}

func countReports(t *testing.T, db *DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.gorm.Model(&reportModel{}).Count(&n).Error)
	return n
}

func TestCompany_DistributionEmails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	assert.Empty(t, c.DistributionEmails)

	require.NoError(t, db.UpdateDistributionEmails(ctx, c.ID, []string{"a@acme.test", "b@acme.test"}))

	got, err := db.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@acme.test", "b@acme.test"}, got.DistributionEmails)

	err = db.UpdateDistributionEmails(ctx, 999, nil)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestUser_EmailIsUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &domain.User{Email: "Admin@Example.test", PasswordHash: "x", Role: domain.RoleAdmin}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.Equal(t, "admin@example.test", u.Email)

	err := db.CreateUser(ctx, &domain.User{Email: "admin@example.test", PasswordHash: "y", Role: domain.RoleUser})
	var conflict *domain.ErrConflict
	assert.True(t, errors.As(err, &conflict))

	found, err := db.FindUserByEmail(ctx, "ADMIN@example.test")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := db.FindUserByEmail(ctx, "nobody@example.test")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVehicle_SoftDeleteFreesPlate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")

	v := &domain.Vehicle{CompanyID: c.ID, LicensePlate: "abc123", LicenseState: "tx", FuelType: domain.FuelDiesel}
	require.NoError(t, db.CreateVehicle(ctx, v))
	assert.Equal(t, "ABC123", v.LicensePlate)

	dup := &domain.Vehicle{CompanyID: c.ID, LicensePlate: "ABC123", LicenseState: "TX", FuelType: domain.FuelDiesel}
	var conflict *domain.ErrConflict
	assert.True(t, errors.As(db.CreateVehicle(ctx, dup), &conflict))

	require.NoError(t, db.DeleteVehicle(ctx, v.ID))
	found, err := db.FindVehicleByPlate(ctx, c.ID, "abc123")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, db.CreateVehicle(ctx, dup))
	list, err := db.ListVehicles(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestQuarterly_InsertIfAbsentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")

	first := seedQuarter(t, db, c.ID, 2025, 2)

	again := &domain.QuarterlyReport{CompanyID: c.ID, Year: 2025, Quarter: 2, Status: domain.QuarterlyInProgress}
	inserted, err := db.InsertQuarterlyIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := db.FindQuarterly(ctx, c.ID, 2025, 2)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	missing, err := db.FindQuarterly(ctx, c.ID, 2025, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReport_DuplicatePeriodConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	q := seedQuarter(t, db, c.ID, 2025, 1)

	r := newReport(c.ID, q.ID, "ABC123", 2, domain.ReportInProgress)
	require.NoError(t, db.CreateReport(ctx, r))
	require.Len(t, r.States, 2)
	assert.Equal(t, "5.00", r.States[0].MPG.StringFixed(2))

	err := db.CreateReport(ctx, newReport(c.ID, q.ID, "ABC123", 2, domain.ReportInProgress))
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(1), countReports(t, db))

	var lines int64
	require.NoError(t, db.gorm.Model(&reportStateModel{}).Count(&lines).Error)
	assert.Equal(t, int64(2), lines)
}

func TestReport_SoftDeletedPeriodCanBeRefiled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	q := seedQuarter(t, db, c.ID, 2025, 1)

	r := newReport(c.ID, q.ID, "ABC123", 1, domain.ReportInProgress)
	require.NoError(t, db.CreateReport(ctx, r))
	require.NoError(t, db.DeleteReport(ctx, r.ID))

	_, err := db.GetReport(ctx, r.ID)
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))

	require.NoError(t, db.CreateReport(ctx, newReport(c.ID, q.ID, "ABC123", 1, domain.ReportInProgress)))
}

func TestListQuarterReports_FiltersStatusAndMonth(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	q1 := seedQuarter(t, db, c.ID, 2025, 1)
	q2 := seedQuarter(t, db, c.ID, 2025, 2)

	require.NoError(t, db.CreateReport(ctx, newReport(c.ID, q1.ID, "A1", 1, domain.ReportSent)))
	require.NoError(t, db.CreateReport(ctx, newReport(c.ID, q1.ID, "A1", 2, domain.ReportRejected)))
	require.NoError(t, db.CreateReport(ctx, newReport(c.ID, q1.ID, "B2", 3, domain.ReportCompleted)))
	require.NoError(t, db.CreateReport(ctx, newReport(c.ID, q2.ID, "A1", 4, domain.ReportSent)))

	got, err := db.ListQuarterReports(ctx, c.ID, 2025, 1, domain.QualifyingStatuses())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ReportMonth)
	assert.Equal(t, 3, got[1].ReportMonth)
	for _, r := range got {
		assert.Len(t, r.States, 2)
	}

	all, err := db.ListReports(ctx, domain.ReportFilter{CompanyID: c.ID, Year: 2025, Quarter: 1})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rejected, err := db.ListReports(ctx, domain.ReportFilter{CompanyID: c.ID, Status: domain.ReportRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].ReportMonth)
}

func TestDeleteQuarterly_CascadesToReports(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	q := seedQuarter(t, db, c.ID, 2025, 1)

	r := newReport(c.ID, q.ID, "ABC123", 1, domain.ReportInProgress)
	require.NoError(t, db.CreateReport(ctx, r))
	require.NoError(t, db.AddAttachment(ctx, &domain.ReportAttachment{ReportID: r.ID, FileName: "a.pdf", StoragePath: "1/a.pdf"}))

	require.NoError(t, db.DeleteQuarterly(ctx, q.ID))

	assert.Equal(t, int64(0), countReports(t, db))
	var lines, files int64
	require.NoError(t, db.gorm.Model(&reportStateModel{}).Count(&lines).Error)
	require.NoError(t, db.gorm.Model(&attachmentModel{}).Count(&files).Error)
	assert.Zero(t, lines)
	assert.Zero(t, files)
}

func TestWithinTransaction_RollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")

	boom := errors.New("boom")
	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		q := &domain.QuarterlyReport{CompanyID: c.ID, Year: 2025, Quarter: 1, Status: domain.QuarterlyInProgress}
		if _, err := db.InsertQuarterlyIfAbsent(ctx, q); err != nil {
			return err
		}
		if err := db.CreateReport(ctx, newReport(c.ID, q.ID, "ABC123", 1, domain.ReportInProgress)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := db.FindQuarterly(ctx, c.ID, 2025, 1)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, int64(0), countReports(t, db))
}

func TestAttachment_ScopedToReport(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCompany(t, db, "acme")
	q := seedQuarter(t, db, c.ID, 2025, 1)
	r := newReport(c.ID, q.ID, "ABC123", 1, domain.ReportInProgress)
	require.NoError(t, db.CreateReport(ctx, r))

	a := &domain.ReportAttachment{ReportID: r.ID, FileName: "receipt.pdf", MimeType: "application/pdf", SizeBytes: 12, StoragePath: "k"}
	require.NoError(t, db.AddAttachment(ctx, a))

	got, err := db.GetAttachment(ctx, r.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", got.FileName)

	_, err = db.GetAttachment(ctx, r.ID+1, a.ID)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))

	full, err := db.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, full.Attachments, 1)
}

func TestOpen_GormLogsGoToZap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	db, err := Open(Config{DSN: ":memory:"}, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	q, err := db.FindQuarterly(ctx, 1, 2025, 1)
	require.NoError(t, err)
	assert.Nil(t, q)
	fromGorm := func(e observer.LoggedEntry) bool { return e.LoggerName == "gorm" }
	assert.Zero(t, logs.Filter(fromGorm).Len(), "missing rows are not logged")

	err = db.gorm.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	entries := logs.Filter(fromGorm).All()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "no_such_table")
}
