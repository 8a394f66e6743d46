package changepoint

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/sartorproj/gochangepoint/timeseries"
)

func levels(segments ...[2]float64) *timeseries.Series {
	var values []float64
	for _, seg := range segments {
		for i := 0; i < int(seg[0]); i++ {
			noise := float64((i*7)%5-2) * 0.1
			values = append(values, seg[1]+noise)
		}
	}
	return timeseries.New(values)
}

// optimalPartition is the unpruned dynamic program PELT must agree with.
func optimalPartition(values []float64, m int, beta float64) []int {
	c := newCost(values)
	n := len(values)
	f := make([]float64, n+1)
	last := make([]int, n+1)
	f[0] = -beta
	for t := 1; t <= n; t++ {
		f[t] = math.Inf(1)
		for tau := 0; tau <= t-m; tau++ {
			if tau > 0 && tau < m {
				continue
			}
			if v := f[tau] + c.segment(tau, t) + beta; v < f[t] {
				f[t], last[t] = v, tau
			}
		}
	}
	var out []int
	for t := last[n]; t > 0; t = last[t] {
		out = append([]int{t}, out...)
	}
	return out
}

func TestDetectSingleShift(t *testing.T) {
	series := levels([2]float64{20, 10}, [2]float64{20, 50})

	for _, method := range []Method{MethodPELT, MethodSingle} {
		t.Run(string(method), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Method = method
			cfg.MinSegment = 5

			set, err := Detect(series, cfg)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if !reflect.DeepEqual(set.Indices(), []int{20}) {
				t.Fatalf("Expected boundary at 20, got %v", set.Indices())
			}

			p := set.Points[0]
			if math.Abs(p.MeanBefore-10) > 0.2 || math.Abs(p.MeanAfter-50) > 0.2 {
				t.Errorf("Unexpected segment means %f -> %f", p.MeanBefore, p.MeanAfter)
			}
			if p.Score <= 1 {
				t.Errorf("Expected score above 1 for a clear shift, got %f", p.Score)
			}
			if !p.Time.Equal(series.At(20).Time) {
				t.Errorf("Expected boundary timestamp %v, got %v", series.At(20).Time, p.Time)
			}
		})
	}
}

func TestDetectMultipleShifts(t *testing.T) {
	series := levels([2]float64{15, 0}, [2]float64{15, 30}, [2]float64{15, 10})
	cfg := Config{Method: MethodPELT, MinSegment: 5, Penalty: 2}

	set, err := Detect(series, cfg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(set.Indices(), []int{15, 30}) {
		t.Errorf("Expected boundaries [15 30], got %v", set.Indices())
	}

	cfg.Method = MethodSingle
	set, err = Detect(series, cfg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(set.Indices(), []int{15}) {
		t.Errorf("Expected single boundary [15], got %v", set.Indices())
	}
}

func TestDetectMaxPoints(t *testing.T) {
	series := levels([2]float64{15, 0}, [2]float64{15, 30}, [2]float64{15, 10})
	cfg := Config{Method: MethodPELT, MinSegment: 5, Penalty: 2, MaxPoints: 1}

	set, err := Detect(series, cfg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(set.Indices(), []int{15}) {
		t.Errorf("Expected strongest boundary [15], got %v", set.Indices())
	}
}

func TestDetectShortSeries(t *testing.T) {
	cfg := Config{Method: MethodPELT, MinSegment: 10, Penalty: 1}
	for _, n := range []int{0, 1, 10, 19} {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i % 3)
		}
		set, err := Detect(timeseries.New(values), cfg)
		if err != nil {
			t.Fatalf("n=%d: unexpected error %v", n, err)
		}
		if set.Len() != 0 {
			t.Errorf("n=%d: expected no boundaries, got %v", n, set.Indices())
		}
	}
}

func TestDetectConstantSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}
	set, err := Detect(timeseries.New(values), DefaultConfig())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected no boundaries in a constant series, got %v", set.Indices())
	}
}

func TestDetectTieBreakEarliest(t *testing.T) {
	// Splitting at 3 or at 6 removes exactly the same squared error.
	series := timeseries.New([]float64{0, 0, 0, 6, 6, 6, 0, 0, 0})
	cfg := Config{Method: MethodSingle, MinSegment: 3, Penalty: 1}

	set, err := Detect(series, cfg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(set.Indices(), []int{3}) {
		t.Errorf("Expected earliest boundary [3], got %v", set.Indices())
	}
}

func TestDetectInvalidConfig(t *testing.T) {
	series := levels([2]float64{20, 10}, [2]float64{20, 50})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero min segment", Config{Method: MethodPELT, MinSegment: 0, Penalty: 1}},
		{"zero penalty", Config{Method: MethodPELT, MinSegment: 2, Penalty: 0}},
		{"negative penalty", Config{Method: MethodPELT, MinSegment: 2, Penalty: -1}},
		{"nan penalty", Config{Method: MethodPELT, MinSegment: 2, Penalty: math.NaN()}},
		{"negative max", Config{Method: MethodPELT, MinSegment: 2, Penalty: 1, MaxPoints: -1}},
		{"unknown method", Config{Method: "bayes", MinSegment: 2, Penalty: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(series, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDetectDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, 200)
	for i := range values {
		values[i] = 60 + 20*math.Sin(float64(i)/52*2*math.Pi) + rng.NormFloat64()*5
	}
	series := timeseries.New(values)

	first, err := Detect(series, DefaultConfig())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, _ := Detect(series, DefaultConfig())
	if !reflect.DeepEqual(first, second) {
		t.Error("Detect returned different results for the same input")
	}
}

func TestPELTMatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 30; trial++ {
		n := 20 + rng.Intn(80)
		m := 1 + rng.Intn(6)
		values := make([]float64, n)
		level := 0.0
		for i := range values {
			if rng.Float64() < 0.05 {
				level += rng.NormFloat64() * 10
			}
			values[i] = level + rng.NormFloat64()
		}

		beta := 2 * math.Log(float64(n))
		got := newCost(values).pelt(m, beta)
		want := optimalPartition(values, m, beta)
		if !reflect.DeepEqual(got, want) && !(len(got) == 0 && len(want) == 0) {
			t.Errorf("trial %d (n=%d, m=%d): PELT %v, exhaustive %v", trial, n, m, got, want)
		}
	}
}

func TestDetectInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	values := make([]float64, 150)
	for i := range values {
		values[i] = float64(i/30)*8 + rng.NormFloat64()*2
	}
	series := timeseries.New(values)
	cfg := Config{Method: MethodPELT, MinSegment: 6, Penalty: 1}

	set, err := Detect(series, cfg)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	prev := 0
	for _, p := range set.Points {
		if p.Index-prev < cfg.MinSegment {
			t.Errorf("Segment [%d, %d) shorter than %d", prev, p.Index, cfg.MinSegment)
		}
		if p.Gain < 0 || p.Score < 0 {
			t.Errorf("Negative gain or score at %d: %f %f", p.Index, p.Gain, p.Score)
		}
		prev = p.Index
	}
	if len(values)-prev < cfg.MinSegment {
		t.Errorf("Final segment shorter than %d", cfg.MinSegment)
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{"": MethodPELT, "PELT": MethodPELT, " single ": MethodSingle}
	for in, want := range tests {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
