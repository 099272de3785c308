package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"epsilon-backend/internal/models"
)

// dateLayouts are tried in order when parsing the first column.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
}

type CSVService struct{}

func NewCSVService() *CSVService {
	return &CSVService{}
}

// ImportObservations parses a CSV stream into observation rows. The first
// column must contain dates; the remaining header cells become variable
// names (trimmed, spaces to underscores). Non-numeric cells are zero-filled:
// import is lenient and the analysis path decides what is usable.
func (s *CSVService) ImportObservations(r io.Reader) ([]models.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, models.Validationf("Error processing CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, models.Validationf("CSV file is empty")
	}

	header := records[0]
	if len(header) < 1 {
		return nil, models.Validationf("CSV file is empty")
	}

	names := make([]string, len(header))
	for i, col := range header {
		names[i] = strings.ReplaceAll(strings.TrimSpace(col), " ", "_")
	}

	var rows []models.Observation
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}

		date, err := parseFlexibleDate(record[0])
		if err != nil {
			return nil, models.Validationf("First column must contain valid dates")
		}

		obs := models.Observation{
			Date:   date.Format(models.DateLayout),
			Values: make(map[string]interface{}, len(record)-1),
		}
		for i := 1; i < len(record) && i < len(names); i++ {
			value, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				value = 0 // zero-fill on import
			}
			obs.Values[names[i]] = value
		}
		rows = append(rows, obs)
	}

	return rows, nil
}

func parseFlexibleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}
