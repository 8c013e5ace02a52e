// Package importer turns CSV exports from spreadsheets into new leads.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

// ValidationError describes a row that was dropped. Row is the line number in
// the file, header included.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

type Parsed struct {
	Leads  []model.NewLead
	Errors []ValidationError
	Rows   int
}

var ErrMissingColumns = errors.New("csv must have a name column and either phone or country_code and phone_number")

var headerAliases = map[string]string{
	"name":          "name",
	"full_name":     "name",
	"country_code":  "country_code",
	"phone_number":  "phone_number",
	"phone":         "phone",
	"interest":      "interest",
	"interest_area": "interest",
	"email":         "email",
}

// ParseCSV reads leads from r. Rows missing a name or phone are reported in
// Parsed.Errors and skipped. Only a broken file or missing columns fail the call.
func ParseCSV(r io.Reader) (Parsed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Parsed{}, ErrMissingColumns
	}
	if err != nil {
		return Parsed{}, fmt.Errorf("read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := headerAliases[h]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	_, hasName := cols["name"]
	_, hasPhone := cols["phone"]
	_, hasCC := cols["country_code"]
	_, hasNumber := cols["phone_number"]
	if !hasName || (!hasPhone && !(hasCC && hasNumber)) {
		return Parsed{}, ErrMissingColumns
	}

	var out Parsed
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		out.Rows++

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		nl := model.NewLead{
			Name:     get("name"),
			Interest: get("interest"),
			Email:    get("email"),
		}
		if nl.Name == "" {
			out.Errors = append(out.Errors, ValidationError{Row: line, Field: "name", Message: "required"})
			continue
		}

		cc, number := get("country_code"), get("phone_number")
		switch {
		case cc != "" && number != "":
			nl.Phone, err = NormalizePhone(cc, number)
		case get("phone") != "":
			nl.Phone, err = NormalizeCombined(get("phone"))
		default:
			err = errors.New("required")
		}
		if err != nil {
			out.Errors = append(out.Errors, ValidationError{Row: line, Field: "phone_number", Message: err.Error()})
			continue
		}

		out.Leads = append(out.Leads, nl)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var templateRows = [][]string{
	{"name", "country_code", "phone_number", "interest_area", "email"},
	{"Jane Smith", "91", "7007334125", "ICU nursing", "jane@example.com"},
}

// TemplateCSV returns a header row and one example row.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll(templateRows)
	return buf.Bytes()
}
