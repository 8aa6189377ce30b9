package handler

import (
	"net/http"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Companies
// ============================================================

func listCompaniesHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies")
		defer span.End()

		companies, err := svc.ListCompanies(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, companies)
	}
}

func getCompanyHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}")
		defer span.End()

		companyID, err := uintParam(r, "companyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("company.id", int(companyID)))

		company, err := svc.GetCompany(ctx, PrincipalFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, company)
	}
}

func getDistributionEmailsHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}/distribution-emails")
		defer span.End()

		companyID, err := uintParam(r, "companyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		emails, err := svc.GetDistributionEmails(ctx, PrincipalFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.DistributionEmailsRequest{Emails: emails})
	}
}

func putDistributionEmailsHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/companies/{companyId}/distribution-emails")
		defer span.End()

		companyID, err := uintParam(r, "companyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.DistributionEmailsRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		emails, err := svc.UpdateDistributionEmails(ctx, PrincipalFromContext(ctx), companyID, req.Emails)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.DistributionEmailsRequest{Emails: emails})
	}
}

// ============================================================
// Vehicles
// ============================================================

func createVehicleHandler(svc *service.VehicleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/vehicles")
		defer span.End()

		var req domain.CreateVehicleRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		v, err := svc.CreateVehicle(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, v)
	}
}

func listVehiclesHandler(svc *service.VehicleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/vehicles")
		defer span.End()

		companyID, err := optionalUintQuery(r, "company_id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		vehicles, err := svc.ListVehicles(ctx, PrincipalFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, vehicles)
	}
}

func deleteVehicleHandler(svc *service.VehicleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/vehicles/{vehicleId}")
		defer span.End()

		vehicleID, err := uintParam(r, "vehicleId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.DeleteVehicle(ctx, PrincipalFromContext(ctx), vehicleID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]uint{"deleted": vehicleID})
	}
}
