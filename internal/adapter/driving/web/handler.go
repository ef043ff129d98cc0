// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/chequescan/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/chequescan/internal/application"
	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

const pageTitle = "Cheque Details Extraction"

// multipartMemory is the part of an upload kept in memory before spilling
// to a temp file.
const multipartMemory = 1 << 20

// SessionService is the login/session contract the GUI depends on.
type SessionService interface {
	Ready(ctx context.Context) error
	Login(ctx context.Context, username, password string) (model.LoginResult, error)
	Resolve(ctx context.Context, token string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

// Extractor runs the upstream extraction for an uploaded image.
type Extractor interface {
	Configured() bool
	Extract(ctx context.Context, img model.UploadedImage) (model.ExtractionResult, error)
}

// Compile-time interface satisfaction checks.
var (
	_ SessionService = (*application.AuthService)(nil)
	_ Extractor      = (*application.ExtractionService)(nil)
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	auth       SessionService
	extractor  Extractor
	report     *application.Report
	cookieName string
	maxUpload  int64
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	auth SessionService,
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
		auth:       auth,
		extractor:  extractor,
		report:     report,
		cookieName: cookieName,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// sessionHandlerFunc is a handler that runs only for a live session.
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session *model.Session)

// requireSession resolves the session cookie and redirects to the login page
// when it is missing, invalid or expired.
func (h *Handler) requireSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(h.cookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		session, err := h.auth.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, model.ErrAuthentication) && !errors.Is(err, model.ErrSessionNotFound) {
				h.logger.Error("failed to resolve session", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			h.clearSessionCookie(w, r)
			target := "/login"
			if errors.Is(err, model.ErrSessionExpired) {
				target = "/login?expired=1"
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		next(w, r, session)
	}
}

// LoginPage renders the login form, or redirects home when a live session
// cookie is already present.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		if _, err := h.auth.Resolve(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	data := vm.LoginViewModel{
		CSRFToken: csrfToken(w, r),
		Info:      "Please enter your username and password",
	}
	if r.URL.Query().Get("expired") != "" {
		data.Info = model.UserMessage(model.ErrSessionExpired)
	}

	status := http.StatusOK
	if err := h.auth.Ready(r.Context()); err != nil {
		h.logger.Error("credential file unavailable", "error", err)
		data.Error = model.UserMessage(err)
		data.Info = ""
		data.Disabled = true
		status = http.StatusServiceUnavailable
	}

	h.render(w, r, status, vm.LayoutViewModel{Title: pageTitle}, LoginPage(data))
}

// Login handles the login form submission.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	username := r.PostFormValue("username")
	result, err := h.auth.Login(r.Context(), username, r.PostFormValue("password"))

	data := vm.LoginViewModel{CSRFToken: csrfToken(w, r), Username: username}
	status := http.StatusOK

	switch result.Status {
	case model.LoginStatusSuccess:
		h.setSessionCookie(w, r, result.Token, result.Session.ExpiresAt)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case model.LoginStatusPending:
		data.Info = "Please enter your username and password"
	default:
		data.Error = model.UserMessage(err)
		status = http.StatusUnauthorized
		switch {
		case errors.Is(err, model.ErrConfiguration):
			data.Disabled = true
			status = http.StatusServiceUnavailable
		case !errors.Is(err, model.ErrAuthentication):
			h.logger.Error("login failed", "error", err)
			status = http.StatusInternalServerError
		}
	}

	h.render(w, r, status, vm.LayoutViewModel{Title: pageTitle}, LoginPage(data))
}

// Logout ends the current session and returns to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("logout failed", "error", err)
		}
	}

	h.clearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Upload renders the upload page.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request, session *model.Session) {
	h.renderUpload(w, r, session, http.StatusOK, "")
}

// Extract accepts the multipart upload, runs the extraction and renders the
// result page. Failures re-render the upload page with the message.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request, session *model.Session) {
	tooLarge := "The image is larger than " + strconv.FormatInt(h.maxUpload>>20, 10) + " MiB."
	if r.ContentLength > h.maxUpload {
		h.renderUpload(w, r, session, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.renderUpload(w, r, session, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		h.renderUpload(w, r, session, http.StatusBadRequest, model.UserMessage(model.ErrImageLoad))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if !h.extractor.Configured() {
		h.renderUpload(w, r, session, http.StatusServiceUnavailable, model.UserMessage(application.ErrAPIKeyMissing))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderUpload(w, r, session, http.StatusBadRequest, "Please upload a cheque image to begin the analysis.")
		return
	}
	defer file.Close()

	img, err := application.LoadImage(file, header.Filename)
	if err != nil {
		h.logger.Info("upload rejected", "file", header.Filename, "error", err)
		h.renderUpload(w, r, session, http.StatusBadRequest, model.UserMessage(err))
		return
	}

	result, err := h.extractor.Extract(r.Context(), img)
	if err != nil {
		h.renderUpload(w, r, session, statusForError(err), model.UserMessage(err))
		return
	}

	csrf := csrfToken(w, r)
	data := toResultViewModel(img, result, h.report.Table(result.Record), *session, csrf)
	h.render(w, r, http.StatusOK, layoutFor(session, csrf), ResultPage(data))
}

// DownloadCSV returns the posted-back record as a CSV attachment.
func (h *Handler) DownloadCSV(w http.ResponseWriter, r *http.Request, _ *model.Session) {
	h.download(w, r, application.CSVFilename, application.CSVContentType, h.report.CSV)
}

// DownloadXLSX returns the posted-back record as an Excel attachment.
func (h *Handler) DownloadXLSX(w http.ResponseWriter, r *http.Request, _ *model.Session) {
	h.download(w, r, application.XLSXFilename, application.XLSXContentType, h.report.XLSX)
}

func (h *Handler) download(
	w http.ResponseWriter,
	r *http.Request,
	filename, contentType string,
	encode func(model.ExtractionRecord) ([]byte, error),
) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	data, err := encode(recordFromForm(r.PostForm))
	if err != nil {
		h.logger.Error("failed to build download", "file", filename, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) renderUpload(w http.ResponseWriter, r *http.Request, session *model.Session, status int, message string) {
	csrf := csrfToken(w, r)
	data := vm.UploadViewModel{
		CSRFToken:   csrf,
		DisplayName: session.DisplayName,
		Fields:      model.FieldNames,
		Error:       message,
	}
	if !h.extractor.Configured() {
		data.Error = model.UserMessage(application.ErrAPIKeyMissing)
		data.Disabled = true
	}

	h.render(w, r, status, layoutFor(session, csrf), UploadPage(data))
}

func layoutFor(session *model.Session, csrf string) vm.LayoutViewModel {
	return vm.LayoutViewModel{
		Title:       pageTitle,
		DisplayName: session.DisplayName,
		CSRFToken:   csrf,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, layout vm.LayoutViewModel, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := Layout(layout, body).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.auth.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
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
