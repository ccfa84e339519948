package threat

import (
	"fmt"
	"math"
)

// DefaultSigmaMultiplier is the number of standard deviations beyond which a
// sample is reported as an outlier.
const DefaultSigmaMultiplier = 2.0

// Outlier confidences are coarse fixed values, not a function of magnitude.
const (
	ConfidenceOutliersFound = 0.8
	ConfidenceNoOutliers    = 0.9
)

// OutlierResult is the outcome of one outlier detection run.
type OutlierResult struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	Confidence   float64 `json:"confidence"`
	Explanation  string  `json:"explanation"`
	OutlierCount int     `json:"outlier_count"`

	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Indices []int   `json:"indices,omitempty"`
}

// DetectOutliers flags samples whose distance from the mean reaches k
// population standard deviations. k <= 0 uses DefaultSigmaMultiplier.
//
// A series with zero spread has no outliers. An empty series fails with an
// *EmptyInputError rather than producing NaN, and a non-finite sample or
// statistic fails with a *NonFiniteError.
func DetectOutliers(samples []float64, k float64) (*OutlierResult, error) {
	if len(samples) == 0 {
		return nil, &EmptyInputError{Op: "detect outliers"}
	}
	if k <= 0 {
		k = DefaultSigmaMultiplier
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &NonFiniteError{Op: "detect outliers", Value: fmt.Sprintf("sample %d", i)}
		}
	}

	mean, std, flagged := samples[0], 0.0, []int(nil)
	if !constant(samples) {
		var ok bool
		if mean, std, flagged, ok = plainStats(samples, k); !ok {
			mean, std, flagged = scaledStats(samples, k)
		}
	}
	if math.IsInf(std, 0) {
		return nil, &NonFiniteError{Op: "detect outliers", Value: "standard deviation"}
	}

	res := &OutlierResult{Mean: mean, StdDev: std, Indices: flagged}
	res.OutlierCount = len(res.Indices)
	res.IsAnomaly = res.OutlierCount > 0
	if res.IsAnomaly {
		res.Confidence = ConfidenceOutliersFound
		res.Explanation = fmt.Sprintf("Found %d data points outside %g standard deviations", res.OutlierCount, k)
	} else {
		res.Confidence = ConfidenceNoOutliers
		res.Explanation = "No anomalies detected"
	}
	return res, nil
}

func constant(samples []float64) bool {
	for _, v := range samples[1:] {
		if v != samples[0] {
			return false
		}
	}
	return true
}

// plainStats computes the statistics directly. ok is false when an
// intermediate sum overflowed.
func plainStats(samples []float64, k float64) (mean, std float64, flagged []int, ok bool) {
	n := float64(len(samples))
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	mean = sum / n

	variance := 0.0
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	if math.IsInf(mean, 0) || math.IsInf(variance, 0) {
		return 0, 0, nil, false
	}
	std = math.Sqrt(variance / n)

	if std > 0 {
		limit := k * std
		for i, v := range samples {
			if math.Abs(v-mean) >= limit {
				flagged = append(flagged, i)
			}
		}
	}
	return mean, std, flagged, true
}

// scaledStats divides every sample by the largest magnitude so that sums stay
// within [-n, n], then scales the results back.
func scaledStats(samples []float64, k float64) (mean, std float64, flagged []int) {
	scale := 0.0
	for _, v := range samples {
		scale = math.Max(scale, math.Abs(v))
	}

	n := float64(len(samples))
	sum := 0.0
	for _, v := range samples {
		sum += v / scale
	}
	m := sum / n

	variance := 0.0
	for _, v := range samples {
		d := v/scale - m
		variance += d * d
	}
	s := math.Sqrt(variance / n)

	if s > 0 {
		limit := k * s
		for i, v := range samples {
			if math.Abs(v/scale-m) >= limit {
				flagged = append(flagged, i)
			}
		}
	}
	return m * scale, s * scale, flagged
}
