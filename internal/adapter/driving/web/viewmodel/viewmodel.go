// Package viewmodel defines presentation-ready structs for the page templates.
// View models decouple template rendering from domain model types.
package viewmodel

import "html/template"

// LayoutViewModel holds the data shared by every page shell.
type LayoutViewModel struct {
	Title       string
	DisplayName string // empty when nobody is logged in
	CSRFToken   string
}

// LoginViewModel holds the login form state.
type LoginViewModel struct {
	CSRFToken string
	Username  string
	Error     string
	Info      string
	Disabled  bool // credential file unavailable
}

// UploadViewModel holds the upload form state.
type UploadViewModel struct {
	CSRFToken   string
	DisplayName string
	Fields      []string
	Error       string
	Disabled    bool // API key missing
}

// FieldViewModel is one extracted field. Present is false when the model
// answer did not mention the field; Value is then empty.
type FieldViewModel struct {
	Name    string
	Value   string
	Present bool
}

// ResultViewModel holds everything the result page renders.
type ResultViewModel struct {
	CSRFToken   string
	DisplayName string
	Filename    string
	ImageURL    template.URL
	RawHTML     template.HTML
	Header      []string
	Row         []string
	Fields      []FieldViewModel
}
