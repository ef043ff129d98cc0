package web

import (
	"encoding/base64"
	"html/template"

	vm "github.com/ericfisherdev/chequescan/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// toFieldViewModels converts a record to one view model per canonical field.
func toFieldViewModels(rec model.ExtractionRecord) []vm.FieldViewModel {
	fields := make([]vm.FieldViewModel, 0, len(model.FieldNames))
	for _, name := range model.FieldNames {
		value, ok := rec.Get(name)
		fields = append(fields, vm.FieldViewModel{Name: name, Value: value, Present: ok})
	}
	return fields
}

// toResultViewModel builds the result page from the uploaded image, the
// extraction and its single-row table.
func toResultViewModel(
	img model.UploadedImage,
	result model.ExtractionResult,
	table model.Table,
	session model.Session,
	csrf string,
) vm.ResultViewModel {
	var row []string
	if len(table.Rows) > 0 {
		row = table.Rows[0]
	}

	return vm.ResultViewModel{
		CSRFToken:   csrf,
		DisplayName: session.DisplayName,
		Filename:    img.Filename,
		ImageURL:    imageDataURL(img),
		RawHTML:     template.HTML(RenderMarkdown(result.RawText)), //nolint:gosec // RenderMarkdown sanitizes with bluemonday.
		Header:      table.Header,
		Row:         row,
		Fields:      toFieldViewModels(result.Record),
	}
}

// imageDataURL inlines the upload for the preview. The content type was
// sniffed at load time and is always image/jpeg or image/png.
func imageDataURL(img model.UploadedImage) template.URL {
	return template.URL("data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)) //nolint:gosec // Content type is sniffed.
}

// recordFromForm rebuilds a record from the hidden fields posted back by the
// download buttons. Fields missing from the form stay absent.
func recordFromForm(values map[string][]string) model.ExtractionRecord {
	var rec model.ExtractionRecord
	for _, name := range model.FieldNames {
		if v, ok := values[name]; ok && len(v) > 0 {
			rec.Set(name, v[0])
		}
	}
	return rec
}
