// Package httphandler implements the JSON API driving adapter.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/chequescan/internal/application"
	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to a temp file.
const multipartMemory = 1 << 20

// SessionResolver resolves a session cookie value to a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.Session, error)
}

// Extractor runs the upstream extraction for an uploaded image.
type Extractor interface {
	Configured() bool
	Extract(ctx context.Context, img model.UploadedImage) (model.ExtractionResult, error)
}

// Compile-time interface satisfaction checks.
var (
	_ SessionResolver = (*application.AuthService)(nil)
	_ Extractor       = (*application.ExtractionService)(nil)
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sessions   SessionResolver
	extractor  Extractor
	report     *application.Report
	cookieName string
	maxUpload  int64
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	sessions SessionResolver,
	extractor Extractor,
	report *application.Report,
	cookieName string,
	maxUpload int64,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:   sessions,
		extractor:  extractor,
		report:     report,
		cookieName: cookieName,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// RegisterAPIRoutes registers all JSON API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("POST /api/v1/extractions", h.CreateExtraction)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateExtraction accepts a multipart "file" upload from a logged-in user and
// returns the raw model text plus the parsed fields. With ?format=csv the
// single-row CSV is returned as an attachment instead.
func (h *Handler) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	session, err := h.sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, model.ErrAuthentication) || errors.Is(err, model.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, model.UserMessage(err))
			return
		}
		h.logger.Error("failed to resolve session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	if !h.extractor.Configured() {
		writeError(w, http.StatusServiceUnavailable, model.UserMessage(application.ErrAPIKeyMissing))
		return
	}

	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data with a file field")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	img, err := application.LoadImage(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.UserMessage(err))
		return
	}

	result, err := h.extractor.Extract(r.Context(), img)
	if err != nil {
		writeError(w, statusForError(err), model.UserMessage(err))
		return
	}

	h.logger.Info("api extraction", "username", session.Username, "file", img.Filename, "fields_present", result.Record.Present())

	if format == "csv" {
		data, err := h.report.CSV(result.Record)
		if err != nil {
			h.logger.Error("failed to build csv", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", application.CSVContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+application.CSVFilename+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, toExtractionResponse(result))
}

// statusForError maps the extraction error taxonomy to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrImageLoad):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUpstream), errors.Is(err, model.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
