package handler

import (
	"net/http"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Quarterly reports
// ============================================================

func listQuarterlyHandler(svc *service.QuarterlyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quarterly-reports/company/{companyId}")
		defer span.End()

		companyID, err := uintParam(r, "companyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		list, err := svc.ListQuarterlyReports(ctx, PrincipalFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func quarterlySummaryHandler(svc *service.QuarterlyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quarterly-reports/company/{companyId}/quarter/{quarter}/year/{year}")
		defer span.End()

		companyID, err := uintParam(r, "companyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		quarter, err := intParam(r, "quarter")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, err := intParam(r, "year")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("company.id", int(companyID)),
			attribute.Int("period.year", year),
			attribute.Int("period.quarter", quarter),
		)

		summary, err := svc.GetQuarterlySummary(ctx, PrincipalFromContext(ctx), companyID, year, quarter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func updateQuarterlyStatusHandler(svc *service.QuarterlyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/quarterly-reports/{quarterlyId}/status")
		defer span.End()

		quarterlyID, err := uintParam(r, "quarterlyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.UpdateStatusRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.UpdateQuarterlyStatus(ctx, PrincipalFromContext(ctx), quarterlyID, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func deleteQuarterlyHandler(svc *service.QuarterlyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/quarterly-reports/{quarterlyId}")
		defer span.End()

		quarterlyID, err := uintParam(r, "quarterlyId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.DeleteQuarterlyReport(ctx, PrincipalFromContext(ctx), quarterlyID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]uint{"deleted": quarterlyID})
	}
}
