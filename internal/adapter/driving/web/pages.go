package web

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/chequescan/internal/adapter/driving/web/viewmodel"
)

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Layout wraps body in the page shell: document head, top bar with the
// logout form when someone is logged in, then body.
func Layout(data vm.LayoutViewModel, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := pageTemplates.ExecuteTemplate(w, "head", data); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return pageTemplates.ExecuteTemplate(w, "foot", data)
	})
}

// LoginPage renders the login form.
func LoginPage(data vm.LoginViewModel) templ.Component {
	return templ.FromGoHTML(pageTemplates.Lookup("login"), data)
}

// UploadPage renders the upload form.
func UploadPage(data vm.UploadViewModel) templ.Component {
	return templ.FromGoHTML(pageTemplates.Lookup("upload"), data)
}

// ResultPage renders the extraction result with its download forms.
func ResultPage(data vm.ResultViewModel) templ.Component {
	return templ.FromGoHTML(pageTemplates.Lookup("result"), data)
}
