package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ExtractionResponse is the JSON representation of one extraction. Fields
// holds every canonical field name; absent fields are null.
type ExtractionResponse struct {
	RawText string             `json:"raw_text"`
	Fields  map[string]*string `json:"fields"`
	Columns []string           `json:"columns"`
}

// toExtractionResponse converts a domain ExtractionResult to its JSON form.
func toExtractionResponse(result model.ExtractionResult) ExtractionResponse {
	fields := make(map[string]*string, len(model.FieldNames))
	for _, name := range model.FieldNames {
		if v, ok := result.Record.Get(name); ok {
			fields[name] = &v
		} else {
			fields[name] = nil
		}
	}

	return ExtractionResponse{
		RawText: result.RawText,
		Fields:  fields,
		Columns: model.FieldNames,
	}
}
