package threat_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

func TestDetectOutliers_empty(t *testing.T) {
	_, err := threat.DetectOutliers(nil, 2)
	if !errors.Is(err, threat.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	var target *threat.EmptyInputError
	if !errors.As(err, &target) {
		t.Errorf("err should be *EmptyInputError, got %T", err)
	}
}

func TestDetectOutliers_constantSeries(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{7, 7, 7, 7}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAnomaly || res.OutlierCount != 0 {
		t.Errorf("constant series flagged: %+v", res)
	}
	if res.StdDev != 0 {
		t.Errorf("StdDev = %v, want 0", res.StdDev)
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if res.Explanation != "No anomalies detected" {
		t.Errorf("Explanation = %q", res.Explanation)
	}
}

func TestDetectOutliers_singleSpike(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{10, 10, 10, 10, 1000}, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Mean != 208 {
		t.Errorf("Mean = %v, want 208", res.Mean)
	}
	if res.StdDev != 396 {
		t.Errorf("StdDev = %v, want 396 (population)", res.StdDev)
	}
	if !res.IsAnomaly || res.OutlierCount != 1 {
		t.Fatalf("want one outlier, got %+v", res)
	}
	if len(res.Indices) != 1 || res.Indices[0] != 4 {
		t.Errorf("Indices = %v, want [4]", res.Indices)
	}
	if res.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", res.Confidence)
	}
	if res.Explanation != "Found 1 data points outside 2 standard deviations" {
		t.Errorf("Explanation = %q", res.Explanation)
	}
}

func TestDetectOutliers_noOutlierWithinSpread(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{1, 2, 3, 4, 5}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAnomaly {
		t.Errorf("uniform spread flagged: %+v", res)
	}
}

func TestDetectOutliers_defaultMultiplier(t *testing.T) {
	a, _ := threat.DetectOutliers([]float64{10, 10, 10, 10, 1000}, 0)
	b, _ := threat.DetectOutliers([]float64{10, 10, 10, 10, 1000}, threat.DefaultSigmaMultiplier)
	if a.OutlierCount != b.OutlierCount {
		t.Errorf("k=0 should use the default multiplier")
	}
}

func TestDetectOutliers_singleSample(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{42}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAnomaly || res.Mean != 42 {
		t.Errorf("single sample: %+v", res)
	}
}

func TestDetectOutliers_largeConstantSeries(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{1e308, 1e308, 1e308}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAnomaly || res.OutlierCount != 0 {
		t.Errorf("constant series flagged: %+v", res)
	}
	if res.Mean != 1e308 || res.StdDev != 0 {
		t.Errorf("Mean = %v, StdDev = %v, want 1e308 and 0", res.Mean, res.StdDev)
	}
}

func TestDetectOutliers_largeMagnitudesStayFinite(t *testing.T) {
	res, err := threat.DetectOutliers([]float64{1e200, -1e200, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(res.Mean, 0) || math.IsNaN(res.Mean) || math.IsInf(res.StdDev, 0) || math.IsNaN(res.StdDev) {
		t.Fatalf("non-finite statistics: mean=%v std=%v", res.Mean, res.StdDev)
	}
	if res.Mean != 0 {
		t.Errorf("Mean = %v, want 0", res.Mean)
	}
	want := 1e200 * math.Sqrt(2.0/3.0)
	if math.Abs(res.StdDev-want) > want*1e-12 {
		t.Errorf("StdDev = %v, want %v", res.StdDev, want)
	}
	if res.IsAnomaly {
		t.Errorf("no sample reaches 2 sigma, got %+v", res)
	}
}

func TestDetectOutliers_largeMagnitudeSpike(t *testing.T) {
	samples := []float64{1e300, 1e300, 1e300, 1e300, 1e300, 1e300, 1e300, 1e300, 1e300, 1e308}
	res, err := threat.DetectOutliers(samples, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsAnomaly || len(res.Indices) != 1 || res.Indices[0] != 9 {
		t.Errorf("want index 9 flagged, got %+v", res)
	}
}

func TestDetectOutliers_nonFiniteSample(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := threat.DetectOutliers([]float64{1, v, 3}, 2)
		if !errors.Is(err, threat.ErrNonFinite) {
			t.Errorf("sample %v: err = %v, want ErrNonFinite", v, err)
		}
		var target *threat.NonFiniteError
		if !errors.As(err, &target) {
			t.Errorf("sample %v: err should be *NonFiniteError, got %T", v, err)
		}
	}
}
