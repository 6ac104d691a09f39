package profile

import (
	"math"
	"sort"
)

// NumericStats summarizes one numeric column. Nulls are excluded, and NaN or
// infinite values only show up in NonFinite, so every other field stays
// finite and JSON-encodable.
type NumericStats struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Outliers  int     `json:"outliers"`
	NonFinite int     `json:"non_finite"`
}

// OutlierPercentile is the cut-off above which values count as outliers.
const OutlierPercentile = 95

func summarize(x []float64) NumericStats {
	n := len(x)
	if n == 0 {
		return NumericStats{}
	}
	s := NumericStats{Count: n, Mean: mean(x), Std: sampleStd(x)}
	s.Min, s.Max = x[0], x[0]
	for _, v := range x[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	cut := percentile(x, OutlierPercentile)
	for _, v := range x {
		if v > cut {
			s.Outliers++
		}
	}
	return s
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// sampleStd uses the n-1 denominator; fewer than two values give 0.
func sampleStd(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	m := mean(x)
	ss := 0.0
	for _, v := range x {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// percentile interpolates linearly between closest ranks (0 <= p <= 100).
func percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	if p <= 0 {
		return cp[0]
	}
	if p >= 100 {
		return cp[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return cp[lower]
	}
	return cp[lower]*(1-weight) + cp[upper]*weight
}
