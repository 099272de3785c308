package service

import (
	"fmt"
	"math"

	"epsilon-backend/internal/models"
)

const millisPerDay = 1000 * 60 * 60 * 24

// AdHocCorrelation correlates two raw value arrays without touching the
// store, for exploratory chart pairings. The debug trail is returned even on
// failure so the client can show what was received. Degenerate input is a
// ValidationError here, unlike the bulk path where such pairs are skipped.
func AdHocCorrelation(req models.AdHocCorrelationRequest) (*models.AdHocCorrelationResponse, []string, error) {
	debug := []string{
		fmt.Sprintf("Input values: x=%v, y=%v", req.XValues, req.YValues),
		fmt.Sprintf("Column keys: xAxis=%s, yAxis=%s", req.XAxis, req.YAxis),
	}

	xDisplay, yDisplay := req.XAxis, req.YAxis
	if req.IsDateX {
		xDisplay = "the Date"
	}
	if req.IsDateY {
		yDisplay = "the Date"
	}

	xs, ok := coerceSeries(req.XValues)
	if !ok {
		return nil, debug, models.Validationf("Invalid numeric values for correlation calculation")
	}
	ys, ok := coerceSeries(req.YValues)
	if !ok {
		return nil, debug, models.Validationf("Invalid numeric values for correlation calculation")
	}

	// Date axes arrive as millisecond timestamps; rescale to days since
	// epoch for interpretable magnitudes. Pearson r itself is unaffected.
	if req.IsDateX {
		rescale(xs)
	}
	if req.IsDateY {
		rescale(ys)
	}

	if len(xs) != len(ys) || len(xs) < 2 {
		return nil, debug, models.Validationf("Need at least 2 numeric data points for correlation")
	}
	if sampleStdDev(xs) == 0 || sampleStdDev(ys) == 0 {
		return nil, debug, models.Validationf("Cannot calculate correlation with constant values")
	}

	r := pearsonCorrelation(xs, ys)
	p := round3(pearsonPValue(r, len(xs)))
	r = round3(r)

	return &models.AdHocCorrelationResponse{
		Correlation:    r,
		PValue:         p,
		Interpretation: interpretCorrelation(r, p, xDisplay, yDisplay),
		DebugInfo:      debug,
	}, debug, nil
}

func coerceSeries(raw []interface{}) ([]float64, bool) {
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, ok := coerceFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func rescale(vals []float64) {
	for i := range vals {
		vals[i] /= millisPerDay
	}
}

// interpretCorrelation phrases the result for display. Wording predates the
// stored-path strength labels and stays as the UI expects it.
func interpretCorrelation(r, p float64, xDisplay, yDisplay string) string {
	strength := "no"
	abs := math.Abs(r)
	switch {
	case abs > strongThreshold:
		strength = "strong"
	case abs > moderateThreshold:
		strength = "moderate"
	case abs > weakThreshold:
		strength = "weak"
	}

	direction := classifyDirection(r)
	significance := "not significant"
	if p < 0.05 {
		significance = "significant"
	}

	if abs < weakThreshold {
		return fmt.Sprintf(
			"There is very little correlation between %s and %s (correlation = %.3f). This is statistically %s (p = %.3f).",
			xDisplay, yDisplay, r, significance, p)
	}
	return fmt.Sprintf(
		"There is a %s %s correlation between %s and %s (correlation = %.3f). This is statistically %s (p = %.3f).",
		strength, direction, xDisplay, yDisplay, r, significance, p)
}
