package model

// Field names recognised in the model's free-text answer. The order is the
// canonical column order of the report.
const (
	FieldPayeeName     = "Payee Name"
	FieldBankName      = "Bank Name"
	FieldAccountNumber = "Account Number"
	FieldChequeNumber  = "Cheque Number"
	FieldAmount        = "Amount"
	FieldDate          = "Date"
)

// FieldNames lists the six extraction fields in canonical order.
var FieldNames = []string{
	FieldPayeeName,
	FieldBankName,
	FieldAccountNumber,
	FieldChequeNumber,
	FieldAmount,
	FieldDate,
}

// ExtractionRecord is the structured result derived from one model response.
// A nil field means the label was not found in the response.
type ExtractionRecord struct {
	PayeeName     *string
	BankName      *string
	AccountNumber *string
	ChequeNumber  *string
	Amount        *string
	Date          *string
}

// Get returns the value for the named field and whether it is present.
func (r ExtractionRecord) Get(field string) (string, bool) {
	p := r.ptr(field)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Set assigns the named field. Unknown field names are ignored.
func (r *ExtractionRecord) Set(field, value string) {
	p := r.ptr(field)
	if p == nil {
		return
	}
	v := value
	*p = &v
}

// Values returns the six values in canonical order, absent fields as "".
func (r ExtractionRecord) Values() []string {
	out := make([]string, 0, len(FieldNames))
	for _, f := range FieldNames {
		v, _ := r.Get(f)
		out = append(out, v)
	}
	return out
}

// Present counts the populated fields.
func (r ExtractionRecord) Present() int {
	n := 0
	for _, f := range FieldNames {
		if _, ok := r.Get(f); ok {
			n++
		}
	}
	return n
}

func (r *ExtractionRecord) ptr(field string) **string {
	switch field {
	case FieldPayeeName:
		return &r.PayeeName
	case FieldBankName:
		return &r.BankName
	case FieldAccountNumber:
		return &r.AccountNumber
	case FieldChequeNumber:
		return &r.ChequeNumber
	case FieldAmount:
		return &r.Amount
	case FieldDate:
		return &r.Date
	}
	return nil
}

// ExtractionResult pairs the raw model text with the parsed record.
type ExtractionResult struct {
	RawText string
	Record  ExtractionRecord
}

// UploadedImage is a validated, fully decoded upload held for the duration
// of one request.
type UploadedImage struct {
	Filename    string
	ContentType string // "image/jpeg" or "image/png"
	Data        []byte
	Width       int
	Height      int
}

// Table is a rendered single-row tabular view of an ExtractionRecord.
type Table struct {
	Header []string
	Rows   [][]string
}
