package models

import "time"

// CorrelationResult represents the stored correlation between a variable pair
type CorrelationResult struct {
	Variable1    string    `json:"variable1"`
	Variable2    string    `json:"variable2"`
	Correlation  float64   `json:"correlation"`
	PValue       float64   `json:"p_value"`
	Strength     string    `json:"strength"`
	Direction    string    `json:"direction"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// AdHocCorrelationRequest is the body for /calculate_correlation.
// Values arrive as raw JSON scalars (numbers or strings) from the chart UI.
type AdHocCorrelationRequest struct {
	XValues []interface{} `json:"x_values"`
	YValues []interface{} `json:"y_values"`
	XAxis   string        `json:"xAxis"`
	YAxis   string        `json:"yAxis"`
	IsDateX bool          `json:"isDateX"`
	IsDateY bool          `json:"isDateY"`
}

// AdHocCorrelationResponse is the inline (non-persisted) correlation result
type AdHocCorrelationResponse struct {
	Correlation    float64  `json:"correlation"`
	PValue         float64  `json:"p_value"`
	Interpretation string   `json:"interpretation"`
	DebugInfo      []string `json:"debug_info"`
}

// CorrelationListResponse is returned by the /api/correlations endpoints
type CorrelationListResponse struct {
	Correlations []CorrelationResult `json:"correlations"`
	Count        int                 `json:"count"`
}
