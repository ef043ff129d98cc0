package web

import "embed"

// StaticFS holds the embedded static assets (CSS).
//
//go:embed static/*
var StaticFS embed.FS

// templateFS holds the page templates rendered through templ.
//
//go:embed templates/*.html
var templateFS embed.FS
