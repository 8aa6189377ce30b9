package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart body is held in memory before
// file parts spill to temporary files.
const multipartMemory = 8 << 20

// ============================================================
// Monthly reports
// ============================================================

// createReportHandler accepts a JSON body, or multipart/form-data with a
// "payload" JSON part and any number of "attachments" file parts.
func createReportHandler(svc *service.ReportService, maxUploadBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ifta-reports")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		var (
			req     domain.CreateReportRequest
			uploads []domain.AttachmentUpload
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(multipartMemory); err != nil {
				handleServiceError(w, multipartErr(err, maxUploadBytes), logger)
				return
			}
			defer func() { _ = r.MultipartForm.RemoveAll() }()

			payload := r.FormValue("payload")
			if payload == "" {
				handleServiceError(w, &domain.ErrValidation{Field: "payload", Message: "multipart requests need a payload part"}, logger)
				return
			}
			if err := decodeJSON(strings.NewReader(payload), &req); err != nil {
				handleServiceError(w, err, logger)
				return
			}

			files, err := openAttachments(r.MultipartForm.File["attachments"])
			defer closeAll(files)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			for i, fh := range r.MultipartForm.File["attachments"] {
				uploads = append(uploads, domain.AttachmentUpload{
					FileName: fh.Filename,
					MimeType: partMimeType(fh),
					Content:  files[i],
				})
			}
		} else if err := decodeJSON(r.Body, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("attachments.count", len(uploads)))

		report, err := svc.CreateReport(ctx, PrincipalFromContext(ctx), &req, uploads)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, report)
	}
}

func multipartErr(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	if strings.Contains(err.Error(), "request body too large") {
		return &http.MaxBytesError{Limit: limit}
	}
	return &domain.ErrValidation{Field: "body", Message: fmt.Sprintf("invalid multipart body: %v", err)}
}

func openAttachments(headers []*multipart.FileHeader) ([]multipart.File, error) {
	files := make([]multipart.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return files, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func partMimeType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(fileExt(fh.Filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func listReportsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ifta-reports")
		defer span.End()

		companyID, err := optionalUintQuery(r, "company_id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, err := optionalIntQuery(r, "year")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		quarter, err := optionalIntQuery(r, "quarter")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		filter := domain.ReportFilter{
			Year:    year,
			Quarter: quarter,
			Status:  domain.ReportStatus(r.URL.Query().Get("status")),
		}
		reports, err := svc.ListReports(ctx, PrincipalFromContext(ctx), companyID, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, reports)
	}
}

func getReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ifta-reports/{reportId}")
		defer span.End()

		reportID, err := uintParam(r, "reportId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("report.id", int(reportID)))

		report, err := svc.GetReport(ctx, PrincipalFromContext(ctx), reportID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func updateReportStatusHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/ifta-reports/{reportId}/status")
		defer span.End()

		reportID, err := uintParam(r, "reportId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.UpdateStatusRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("status.target", req.Status))

		report, err := svc.UpdateReportStatus(ctx, PrincipalFromContext(ctx), reportID, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func deleteReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/ifta-reports/{reportId}")
		defer span.End()

		reportID, err := uintParam(r, "reportId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.DeleteReport(ctx, PrincipalFromContext(ctx), reportID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]uint{"deleted": reportID})
	}
}

// downloadAttachmentHandler streams the raw file, outside the JSON envelope.
func downloadAttachmentHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ifta-reports/{reportId}/attachments/{attachmentId}")
		defer span.End()

		reportID, err := uintParam(r, "reportId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		attachmentID, err := uintParam(r, "attachmentId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		att, content, err := svc.OpenAttachment(ctx, PrincipalFromContext(ctx), reportID, attachmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		defer content.Close()

		w.Header().Set("Content-Type", att.MimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName})
		if disposition == "" {
			disposition = "attachment"
		}
		w.Header().Set("Content-Disposition", disposition)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, content); err != nil {
			logger.Warn("attachment download interrupted",
				zap.Uint("attachment_id", attachmentID),
				zap.Error(err),
			)
		}
	}
}
