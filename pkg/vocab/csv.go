package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV returns every non-empty cell of r in row order. The first column of a header
// row named "word" is skipped.
func ReadCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var out []string
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "word") {
				continue
			}
		}
		for _, cell := range rec {
			cell = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
			if cell != "" {
				out = append(out, cell)
			}
		}
	}
	return out, nil
}
