package approvals

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"intake/internal/domain"
)

// headerAliases maps normalized CSV headers onto TypeApproval columns.
var headerAliases = map[string]string{
	"approvalnumber":         "approval",
	"typeapprovalnumber":     "approval",
	"typeapproval":           "approval",
	"typegoedkeuringsnummer": "approval",
	"brand":                  "brand",
	"make":                   "brand",
	"merk":                   "brand",
	"type":                   "type",
	"variant":                "variant",
	"version":                "version",
	"uitvoering":             "version",
	"tradename":              "tradename",
	"handelsbenaming":        "tradename",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(h)
}

// ParseCSV reads a type-approval sheet exported as CSV. The delimiter is
// ',' or ';', whichever the header line uses more. Unknown columns are kept
// in Extra. Blank lines are skipped; a row without an approval number is an error.
func ParseCSV(data []byte) ([]domain.TypeApproval, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty sheet: %w", domain.ErrInvalidInput)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", domain.Wrap(domain.ErrInvalidInput, err))
	}
	columns := make([]string, len(header))
	hasApproval := false
	for i, h := range header {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			columns[i] = col
			hasApproval = hasApproval || col == "approval"
		}
	}
	if !hasApproval {
		return nil, fmt.Errorf("no approval number column: %w", domain.ErrInvalidInput)
	}

	var out []domain.TypeApproval
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, domain.Wrap(domain.ErrInvalidInput, err))
		}
		if blank(rec) {
			continue
		}
		row := domain.TypeApproval{}
		for i, v := range rec {
			v = strings.TrimSpace(v)
			if i >= len(header) {
				break
			}
			switch columns[i] {
			case "approval":
				row.ApprovalNumber = v
			case "brand":
				row.Brand = v
			case "type":
				row.Type = v
			case "variant":
				row.Variant = v
			case "version":
				row.Version = v
			case "tradename":
				row.TradeName = v
			default:
				if v == "" {
					continue
				}
				if row.Extra == nil {
					row.Extra = map[string]string{}
				}
				row.Extra[strings.TrimSpace(header[i])] = v
			}
		}
		if row.ApprovalNumber == "" {
			return nil, fmt.Errorf("line %d: missing approval number: %w", line, domain.ErrInvalidInput)
		}
		out = append(out, row)
	}
	return out, nil
}

func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
