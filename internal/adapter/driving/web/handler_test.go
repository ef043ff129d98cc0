package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ericfisherdev/chequescan/internal/application"
	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

const (
	testCookie  = "chequescan_session"
	testToken   = "valid-token"
	testCSRF    = "csrf-test-token"
	testMaxBody = 1 << 20
)

// --- Mock implementations ---

type mockSessionService struct {
	readyErr     error
	loginResult  model.LoginResult
	loginErr     error
	resolveErr   error
	sessions     map[string]*model.Session
	logoutTokens []string
}

func newMockSessionService() *mockSessionService {
	return &mockSessionService{
		sessions: map[string]*model.Session{
			testToken: {ID: "s-1", Username: "Prateek", DisplayName: "Prateek Agarwal"},
		},
	}
}

func (m *mockSessionService) Ready(_ context.Context) error { return m.readyErr }

func (m *mockSessionService) Login(_ context.Context, _, _ string) (model.LoginResult, error) {
	return m.loginResult, m.loginErr
}

func (m *mockSessionService) Resolve(_ context.Context, token string) (*model.Session, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	s, ok := m.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: %w", model.ErrSessionNotFound, model.ErrAuthentication)
	}
	return s, nil
}

func (m *mockSessionService) Logout(_ context.Context, token string) error {
	m.logoutTokens = append(m.logoutTokens, token)
	return nil
}

func (m *mockSessionService) TTL() time.Duration { return 7 * 24 * time.Hour }

type mockExtractor struct {
	unconfigured bool
	result       model.ExtractionResult
	err          error
	calls        int
}

func (m *mockExtractor) Configured() bool { return !m.unconfigured }

func (m *mockExtractor) Extract(_ context.Context, _ model.UploadedImage) (model.ExtractionResult, error) {
	m.calls++
	return m.result, m.err
}

// --- Helpers ---

func setupMux(auth SessionService, ext Extractor) *http.ServeMux {
	h := NewHandler(auth, ext, application.NewReport(nil), testCookie, testMaxBody, nil)
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return mux
}

func withCookies(req *http.Request, session bool) *http.Request {
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	if session {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: testToken})
	}
	return req
}

func postForm(path string, values url.Values, session bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withCookies(req, session)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, data []byte, csrf string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField(csrfFormField, csrf))
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withCookies(req, true)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Login ---

func TestLoginPage(t *testing.T) {
	tests := []struct {
		name         string
		readyErr     error
		query        string
		wantStatus   int
		wantContains []string
		wantMissing  []string
	}{
		{
			name:         "renders form",
			wantStatus:   http.StatusOK,
			wantContains: []string{`action="/login"`, "Please enter your username and password", `name="csrf_token"`},
		},
		{
			name:         "expired session notice",
			query:        "?expired=1",
			wantStatus:   http.StatusOK,
			wantContains: []string{"Your session has ended. Please log in again."},
		},
		{
			name:         "missing credential file",
			readyErr:     fmt.Errorf("%w: the file \"hashed_pw.json\" does not exist", model.ErrConfiguration),
			wantStatus:   http.StatusServiceUnavailable,
			wantContains: []string{"the file &#34;hashed_pw.json&#34; does not exist"},
			wantMissing:  []string{`action="/login"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newMockSessionService()
			auth.readyErr = tt.readyErr
			mux := setupMux(auth, &mockExtractor{})

			req := httptest.NewRequest(http.MethodGet, "/login"+tt.query, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			for _, s := range tt.wantContains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.wantMissing {
				assert.NotContains(t, body, s)
			}
			assert.NotNil(t, findCookie(rec, csrfCookieName))
		})
	}
}

func TestLoginPage_RedirectsWhenLoggedIn(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	req := withCookies(httptest.NewRequest(http.MethodGet, "/login", nil), true)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogin(t *testing.T) {
	expires := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		result       model.LoginResult
		err          error
		wantStatus   int
		wantLocation string
		wantContains string
		wantCookie   bool
	}{
		{
			name: "success sets cookie",
			result: model.LoginResult{
				Status:  model.LoginStatusSuccess,
				Session: &model.Session{ID: "s-2", Username: "Anubhav", ExpiresAt: expires},
				Token:   "signed-token",
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
			wantCookie:   true,
		},
		{
			name:         "bad password",
			result:       model.LoginResult{Status: model.LoginStatusFailure},
			err:          fmt.Errorf("user %q: %w", "Anubhav", model.ErrAuthentication),
			wantStatus:   http.StatusUnauthorized,
			wantContains: "Username/Password is incorrect",
		},
		{
			name:         "pending",
			result:       model.LoginResult{Status: model.LoginStatusPending},
			wantStatus:   http.StatusOK,
			wantContains: "Please enter your username and password",
		},
		{
			name:         "credential file missing",
			result:       model.LoginResult{Status: model.LoginStatusFailure},
			err:          fmt.Errorf("%w: no file", model.ErrConfiguration),
			wantStatus:   http.StatusServiceUnavailable,
			wantContains: "no file",
		},
		{
			name:         "session store failure",
			result:       model.LoginResult{Status: model.LoginStatusFailure},
			err:          errors.New("create session: disk full"),
			wantStatus:   http.StatusInternalServerError,
			wantContains: "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newMockSessionService()
			auth.loginResult = tt.result
			auth.loginErr = tt.err
			mux := setupMux(auth, &mockExtractor{})

			form := url.Values{"username": {"Anubhav"}, "password": {"def456"}, csrfFormField: {testCSRF}}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, postForm("/login", form, false))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantContains != "" {
				assert.Contains(t, rec.Body.String(), tt.wantContains)
			}

			cookie := findCookie(rec, testCookie)
			if tt.wantCookie {
				require.NotNil(t, cookie)
				assert.Equal(t, "signed-token", cookie.Value)
				assert.True(t, cookie.HttpOnly)
				assert.Equal(t, 7*24*3600, cookie.MaxAge)
			} else {
				assert.Nil(t, cookie)
			}
		})
	}
}

func TestLogin_RejectsMissingCSRF(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	form := url.Values{"username": {"Anubhav"}, "password": {"def456"}, csrfFormField: {"forged"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/login", form, false))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout(t *testing.T) {
	auth := newMockSessionService()
	mux := setupMux(auth, &mockExtractor{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/logout", url.Values{csrfFormField: {testCSRF}}, true))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, []string{testToken}, auth.logoutTokens)

	cookie := findCookie(rec, testCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

// --- Upload page ---

func TestUpload_RequiresSession(t *testing.T) {
	tests := []struct {
		name         string
		cookie       bool
		resolveErr   error
		wantStatus   int
		wantLocation string
	}{
		{name: "no cookie", wantStatus: http.StatusSeeOther, wantLocation: "/login"},
		{
			name:         "expired",
			cookie:       true,
			resolveErr:   fmt.Errorf("%w: %w", model.ErrSessionExpired, model.ErrAuthentication),
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?expired=1",
		},
		{
			name:         "tampered",
			cookie:       true,
			resolveErr:   fmt.Errorf("invalid session token: %w", model.ErrAuthentication),
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login",
		},
		{
			name:       "store failure",
			cookie:     true,
			resolveErr: errors.New("load session: database is locked"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newMockSessionService()
			auth.resolveErr = tt.resolveErr
			mux := setupMux(auth, &mockExtractor{})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie {
				req = withCookies(req, true)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
		})
	}
}

func TestUpload_RendersForm(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), true))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, Prateek Agarwal")
	assert.Contains(t, body, `action="/logout"`)
	assert.Contains(t, body, `enctype="multipart/form-data"`)
	for _, f := range model.FieldNames {
		assert.Contains(t, body, "<li>"+f+"</li>")
	}
}

func TestUpload_MissingAPIKey(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{unconfigured: true})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "API Key is missing!")
	assert.NotContains(t, rec.Body.String(), `action="/extract"`)
}

// --- Extraction ---

func TestExtract_Success(t *testing.T) {
	ext := &mockExtractor{result: model.ExtractionResult{
		RawText: "**Payee Name:** John Doe\nAmount: 500.00",
		Record:  application.ParseExtractedInfo("Payee Name: John Doe\nAmount: 500.00"),
	}}
	mux := setupMux(newMockSessionService(), ext)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "cheque.png", testPNG(t), testCSRF))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ext.calls)

	body := rec.Body.String()
	assert.Contains(t, body, `src="data:image/png;base64,`)
	assert.Contains(t, body, "<strong>Payee Name:</strong> John Doe")
	assert.Contains(t, body, "<th>Payee Name</th>")
	assert.Contains(t, body, "<td>John Doe</td>")
	assert.Contains(t, body, "<td>500.00</td>")
	assert.Contains(t, body, `name="Payee Name" value="John Doe"`)
	assert.NotContains(t, body, `name="Bank Name"`)
	assert.Contains(t, body, `action="/download/csv"`)
	assert.Contains(t, body, "All rights reserved.")
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		data         []byte
		csrf         string
		extractor    *mockExtractor
		wantStatus   int
		wantContains string
		wantCalls    int
	}{
		{
			name:       "bad csrf",
			filename:   "cheque.png",
			csrf:       "forged",
			extractor:  &mockExtractor{},
			wantStatus: http.StatusForbidden,
		},
		{
			name:         "no file",
			csrf:         testCSRF,
			extractor:    &mockExtractor{},
			wantStatus:   http.StatusBadRequest,
			wantContains: "Please upload a cheque image to begin the analysis.",
		},
		{
			name:         "unsupported extension",
			filename:     "cheque.gif",
			csrf:         testCSRF,
			extractor:    &mockExtractor{},
			wantStatus:   http.StatusBadRequest,
			wantContains: "Failed to load the image. Please try again.",
		},
		{
			name:         "corrupt image",
			filename:     "cheque.jpg",
			data:         []byte("not an image"),
			csrf:         testCSRF,
			extractor:    &mockExtractor{},
			wantStatus:   http.StatusBadRequest,
			wantContains: "Failed to load the image. Please try again.",
		},
		{
			name:         "upstream error",
			filename:     "cheque.png",
			csrf:         testCSRF,
			extractor:    &mockExtractor{err: fmt.Errorf("%w: quota exceeded", model.ErrUpstream)},
			wantStatus:   http.StatusBadGateway,
			wantContains: "Error generating content:",
			wantCalls:    1,
		},
		{
			name:         "empty response",
			filename:     "cheque.png",
			csrf:         testCSRF,
			extractor:    &mockExtractor{err: model.ErrEmptyResponse},
			wantStatus:   http.StatusBadGateway,
			wantContains: "The AI did not return any content. Please try again.",
			wantCalls:    1,
		},
		{
			name:         "missing api key",
			filename:     "cheque.png",
			csrf:         testCSRF,
			extractor:    &mockExtractor{unconfigured: true},
			wantStatus:   http.StatusServiceUnavailable,
			wantContains: "API Key is missing!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil {
				data = testPNG(t)
			}
			mux := setupMux(newMockSessionService(), tt.extractor)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, uploadRequest(t, tt.filename, data, tt.csrf))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantContains != "" {
				assert.Contains(t, rec.Body.String(), tt.wantContains)
			}
			assert.Equal(t, tt.wantCalls, tt.extractor.calls)
		})
	}
}

func TestExtract_TooLarge(t *testing.T) {
	ext := &mockExtractor{}
	mux := setupMux(newMockSessionService(), ext)

	big := make([]byte, testMaxBody+1)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "cheque.png", big, testCSRF))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "larger than 1 MiB")
	assert.Zero(t, ext.calls)
}

// --- Downloads ---

func TestDownloadCSV(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	form := url.Values{
		csrfFormField:   {testCSRF},
		"Payee Name":    {"Doe, John"},
		"Amount":        {"500.00"},
		"Unrelated":     {"ignored"},
		"Cheque Number": {"000123"},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/download/csv", form, true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cheque_extracted_info.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"Payee Name,Bank Name,Account Number,Cheque Number,Amount,Date\n"+
			"\"Doe, John\",,,000123,500.00,\n",
		rec.Body.String())
}

func TestDownloadXLSX(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	form := url.Values{csrfFormField: {testCSRF}, "Bank Name": {"State Bank"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/download/xlsx", form, true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, application.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), application.XLSXFilename)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.FieldNames, rows[0])
	assert.Equal(t, "State Bank", rows[1][1])
}

func TestDownload_RequiresSessionAndCSRF(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/download/csv", url.Values{csrfFormField: {testCSRF}}, false))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/download/csv", url.Values{csrfFormField: {"forged"}}, true))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	mux := setupMux(newMockSessionService(), &mockExtractor{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".footer")
}
