package application

import (
	"strings"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// valueCutset is trimmed from both ends of an extracted value: whitespace
// plus the emphasis markers the model uses in markdown answers.
const valueCutset = " \t\r\n*_"

// ParseExtractedInfo converts the model's free-text answer into a record.
// For each field, the first line containing the field label supplies the
// value: the text after the line's last colon, trimmed. Fields with no
// matching line stay absent. Lines without a colon yield the whole line.
func ParseExtractedInfo(text string) model.ExtractionRecord {
	var rec model.ExtractionRecord
	lines := strings.Split(text, "\n")

	for _, field := range model.FieldNames {
		for _, line := range lines {
			if !strings.Contains(line, field) {
				continue
			}
			rec.Set(field, valueAfterLastColon(line))
			break
		}
	}

	return rec
}

func valueAfterLastColon(line string) string {
	if i := strings.LastIndex(line, ":"); i >= 0 {
		line = line[i+1:]
	}
	return strings.Trim(line, valueCutset)
}
