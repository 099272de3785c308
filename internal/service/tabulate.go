package service

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"epsilon-backend/internal/models"
)

// Table is the column-aligned projection of a user's observations used for
// correlation analysis. Each retained variable has one slot per row; nil
// marks a missing or non-numeric value. Variables keeps first-appearance
// order over the date-ordered rows, which fixes pair identity.
type Table struct {
	Variables []string
	Columns   map[string][]*float64
	RowCount  int
}

// Tabulate assembles observation rows into aligned columns. A variable is
// retained only if at least one of its values coerces to a number; values
// that fail coercion inside a retained column become missing here, not zero.
// Zero-filling happens only at import time.
func Tabulate(rows []models.Observation) *Table {
	table := &Table{
		Columns:  make(map[string][]*float64),
		RowCount: len(rows),
	}

	table.Variables = stableVariableOrder(rows)

	retained := table.Variables[:0]
	for _, name := range table.Variables {
		column := make([]*float64, len(rows))
		hasNumeric := false
		for i, row := range rows {
			raw, ok := row.Values[name]
			if !ok {
				continue
			}
			if v, ok := coerceFloat(raw); ok {
				column[i] = &v
				hasNumeric = true
			}
		}
		if hasNumeric {
			table.Columns[name] = column
			retained = append(retained, name)
		}
	}
	table.Variables = retained

	return table
}

// stableVariableOrder walks the rows and returns variable names in first-
// appearance order, with names first seen in the same row sorted to break
// the tie deterministically.
func stableVariableOrder(rows []models.Observation) []string {
	var order []string
	seen := make(map[string]bool)
	for _, row := range rows {
		var introduced []string
		for name := range row.Values {
			if !seen[name] {
				seen[name] = true
				introduced = append(introduced, name)
			}
		}
		sort.Strings(introduced)
		order = append(order, introduced...)
	}
	return order
}

// coerceFloat converts a raw observation value to a finite float64.
// Accepts JSON numbers, integer types and numeric strings.
func coerceFloat(raw interface{}) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
