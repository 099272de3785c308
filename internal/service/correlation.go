package service

import (
	"math"
	"time"

	"epsilon-backend/internal/models"
)

// Strength thresholds on |r|.
const (
	strongThreshold   = 0.7
	moderateThreshold = 0.3
	weakThreshold     = 0.1
)

// ComputePairwise runs the pairwise Pearson scan over every unordered pair
// of retained variables, in first-appearance order. Pairs with fewer than 2
// aligned rows or with zero variance in either column are skipped; they are
// degenerate, not errors. O(V²·N), fine at personal time-series scale.
func ComputePairwise(table *Table, at time.Time) []models.CorrelationResult {
	var results []models.CorrelationResult

	for i := 0; i < len(table.Variables); i++ {
		for j := i + 1; j < len(table.Variables); j++ {
			varX, varY := table.Variables[i], table.Variables[j]
			xs, ys := alignPair(table.Columns[varX], table.Columns[varY])

			if len(xs) < 2 {
				continue
			}
			if sampleStdDev(xs) == 0 || sampleStdDev(ys) == 0 {
				continue
			}

			r := pearsonCorrelation(xs, ys)
			p := pearsonPValue(r, len(xs))
			r = round3(r)
			p = round3(p)

			results = append(results, models.CorrelationResult{
				Variable1:    varX,
				Variable2:    varY,
				Correlation:  r,
				PValue:       p,
				Strength:     classifyStrength(r),
				Direction:    classifyDirection(r),
				CalculatedAt: at,
			})
		}
	}

	return results
}

// alignPair keeps only row indices where both columns have a present value.
func alignPair(colX, colY []*float64) (xs, ys []float64) {
	for i := range colX {
		if colX[i] != nil && colY[i] != nil {
			xs = append(xs, *colX[i])
			ys = append(ys, *colY[i])
		}
	}
	return xs, ys
}

// pearsonCorrelation computes the sample Pearson r for two equal-length
// series. Returns 0 when the denominator collapses.
func pearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	n := float64(len(x))
	sumX, sumY, sumXY, sumX2, sumY2 := 0.0, 0.0, 0.0, 0.0, 0.0
	for i := 0; i < len(x); i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// pearsonPValue is the two-tailed significance of a sample correlation under
// the null of no linear association: t = r·sqrt((n−2)/(1−r²)) against the
// t distribution with n−2 degrees of freedom.
func pearsonPValue(r float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		return 1
	}
	denom := 1 - r*r
	if denom <= 0 {
		return 0
	}
	t := r * math.Sqrt(df/denom)
	// P(|T| > t) = I_{df/(df+t²)}(df/2, 1/2)
	return regularizedIncompleteBeta(df/2, 0.5, df/(df+t*t))
}

// regularizedIncompleteBeta evaluates I_x(a, b) by continued fraction,
// using the symmetry transform for fast convergence.
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	lgAB, _ := math.Lgamma(a + b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

// betaContinuedFraction is the modified Lentz evaluation of the continued
// fraction for the incomplete beta function.
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 3e-14
		tiny          = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		m2 := float64(2 * m)
		mf := float64(m)

		aa := mf * (b - mf) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + mf) * (qab + mf) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		h *= delta

		if math.Abs(delta-1) < epsilon {
			break
		}
	}
	return h
}

// sampleStdDev is the n−1 standard deviation of vals.
func sampleStdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func classifyStrength(r float64) string {
	abs := math.Abs(r)
	switch {
	case abs > strongThreshold:
		return "strong"
	case abs > moderateThreshold:
		return "moderate"
	case abs > weakThreshold:
		return "weak"
	default:
		return "very weak"
	}
}

// classifyDirection deliberately uses > rather than a sign check: r = 0
// comes out "negative", matching long-standing behavior.
func classifyDirection(r float64) string {
	if r > 0 {
		return "positive"
	}
	return "negative"
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
