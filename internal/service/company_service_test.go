package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionEmails(t *testing.T) {
	env := newEnv(t)
	c, p := env.tenant(t, "acme", "TRK1")
	ctx := context.Background()

	got, err := env.companies.GetDistributionEmails(ctx, p, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)

	got, err = env.companies.UpdateDistributionEmails(ctx, p, c.ID, []string{"Dispatch@acme.test", "billing@acme.test", "dispatch@ACME.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dispatch@acme.test", "billing@acme.test"}, got)

	got, err = env.companies.GetDistributionEmails(ctx, p, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dispatch@acme.test", "billing@acme.test"}, got)

	_, err = env.companies.UpdateDistributionEmails(ctx, p, c.ID, []string{"ok@acme.test", "broken"})
	v := requireErrAs[*domain.ErrValidation](t, err)
	assert.Equal(t, "emails", v.Field)

	got, err = env.companies.UpdateDistributionEmails(ctx, p, c.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompanyAccess(t *testing.T) {
	env := newEnv(t)
	c, _ := env.tenant(t, "acme", "TRK1")
	_, other := env.tenant(t, "globex", "TRK9")
	ctx := context.Background()

	_, err := env.companies.GetCompany(ctx, other, c.ID)
	requireErrAs[*domain.ErrForbidden](t, err)

	_, err = env.companies.UpdateDistributionEmails(ctx, other, c.ID, []string{"x@globex.test"})
	requireErrAs[*domain.ErrForbidden](t, err)

	_, err = env.companies.ListCompanies(ctx, other)
	requireErrAs[*domain.ErrForbidden](t, err)

	all, err := env.companies.ListCompanies(ctx, admin())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = env.companies.GetCompany(ctx, admin(), 9999)
	requireErrAs[*domain.ErrNotFound](t, err)
}

func TestVehicles(t *testing.T) {
	env := newEnv(t)
	c, p := env.tenant(t, "acme", "TRK1")
	_, other := env.tenant(t, "globex", "TRK9")
	ctx := context.Background()

	v, err := env.vehicles.CreateVehicle(ctx, p, &domain.CreateVehicleRequest{
		LicensePlate: " abc123 ",
		LicenseState: "ok",
		Make:         "Freightliner",
		Year:         2019,
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", v.LicensePlate)
	assert.Equal(t, "OK", v.LicenseState)
	assert.Equal(t, domain.FuelDiesel, v.FuelType)
	assert.Equal(t, c.ID, v.CompanyID)

	_, err = env.vehicles.CreateVehicle(ctx, p, &domain.CreateVehicleRequest{LicensePlate: "ABC123", LicenseState: "OK"})
	requireErrAs[*domain.ErrConflict](t, err)

	bad := []domain.CreateVehicleRequest{
		{LicensePlate: "", LicenseState: "TX"},
		{LicensePlate: "X1", LicenseState: "Texas"},
		{LicensePlate: "X1", LicenseState: "TX", FuelType: "coal"},
		{LicensePlate: "X1", LicenseState: "TX", Year: 1850},
	}
	for i := range bad {
		_, err := env.vehicles.CreateVehicle(ctx, p, &bad[i])
		requireErrAs[*domain.ErrValidation](t, err)
	}

	list, err := env.vehicles.ListVehicles(ctx, p, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = env.vehicles.DeleteVehicle(ctx, other, v.ID)
	requireErrAs[*domain.ErrForbidden](t, err)

	require.NoError(t, env.vehicles.DeleteVehicle(ctx, p, v.ID))
	list, err = env.vehicles.ListVehicles(ctx, p, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = env.vehicles.ListVehicles(ctx, other, &c.ID)
	requireErrAs[*domain.ErrForbidden](t, err)
}
