package models

import (
	"encoding/json"
	"time"
)

// DateField is the reserved row key carrying the observation date.
const DateField = "Date"

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Observation is one dated row of a user's variable values. Values holds
// every field except Date; variable names are free-form and scoped per user.
type Observation struct {
	Date   string
	Values map[string]interface{}
}

// ParseDate parses the row date as a calendar day.
func (o Observation) ParseDate() (time.Time, error) {
	return time.Parse(DateLayout, o.Date)
}

// MarshalJSON flattens Values next to Date, matching the client row shape
// {"Date": "2025-01-01", "Sleep": 7.5, ...}.
func (o Observation) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(o.Values)+1)
	for k, v := range o.Values {
		flat[k] = v
	}
	flat[DateField] = o.Date
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flat row shape back into Date and Values.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	o.Values = make(map[string]interface{}, len(flat))
	for k, v := range flat {
		if k == DateField {
			if s, ok := v.(string); ok {
				o.Date = s
			}
			continue
		}
		o.Values[k] = v
	}
	return nil
}
