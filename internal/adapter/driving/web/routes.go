package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Authentication.
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)

	// Pages behind a session.
	mux.HandleFunc("GET /{$}", h.requireSession(h.Upload))
	mux.HandleFunc("POST /extract", h.requireSession(h.Extract))
	mux.HandleFunc("POST /download/csv", h.requireSession(h.DownloadCSV))
	mux.HandleFunc("POST /download/xlsx", h.requireSession(h.DownloadXLSX))
}
