package timeseries

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	valid := []string{"2020-01-01", "2022-12-31", "2021-06-15"}
	for _, s := range valid {
		if _, err := ParseDate(s); err != nil {
			t.Errorf("Expected %q to parse, got %v", s, err)
		}
	}

	invalid := []string{"invalid", "2020-13-01", "2020-01-32", "", "2020/01/01", "20-1-1"}
	for _, s := range invalid {
		_, err := ParseDate(s)
		if !errors.Is(err, ErrInvalidDateRange) {
			t.Errorf("Expected ErrInvalidDateRange for %q, got %v", s, err)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
		open       bool
	}{
		{"both", "2020-01-08", "2020-01-15", false, false},
		{"same day", "2020-01-08", "2020-01-08", false, false},
		{"start only", "2020-01-08", "", false, false},
		{"end only", "", "2020-01-15", false, false},
		{"open", "", "", false, true},
		{"start after end", "2020-02-01", "2020-01-01", true, false},
		{"malformed start", "yesterday", "", true, false},
		{"malformed end", "", "2020-02-30", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.start, tt.end)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDateRange) {
					t.Fatalf("Expected ErrInvalidDateRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if r.IsOpen() != tt.open {
				t.Errorf("Expected IsOpen=%v for %s", tt.open, r)
			}
		})
	}
}

func TestFilterInclusive(t *testing.T) {
	s := weekly()
	r, _ := ParseDateRange("2020-01-08", "2020-01-15")

	got := Filter(s, r)
	if got.Len() != 2 {
		t.Fatalf("Expected 2 observations, got %d", got.Len())
	}

	expected := []Point{
		{Time: date("2020-01-08"), Value: 20},
		{Time: date("2020-01-15"), Value: 30},
	}
	for i, p := range expected {
		if !got.At(i).Time.Equal(p.Time) || got.At(i).Value != p.Value {
			t.Errorf("Expected %v at index %d, got %v", p, i, got.At(i))
		}
	}
}

func TestFilterBounds(t *testing.T) {
	s := weekly()

	tests := []struct {
		name       string
		start, end string
		expected   []float64
	}{
		{"open", "", "", []float64{10, 20, 30, 40}},
		{"start only", "2020-01-10", "", []float64{30, 40}},
		{"end only", "", "2020-01-08", []float64{10, 20}},
		{"between observations", "2020-01-09", "2020-01-14", []float64{}},
		{"before series", "2019-01-01", "2019-12-31", []float64{}},
		{"after series", "2021-01-01", "", []float64{}},
		{"covering", "2019-01-01", "2021-01-01", []float64{10, 20, 30, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.start, tt.end)
			if err != nil {
				t.Fatalf("ParseDateRange failed: %v", err)
			}
			got := Filter(s, r).Values()
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestFilterIntradayEndDate(t *testing.T) {
	day := date("2020-01-15")
	timestamps := []time.Time{
		day.Add(-time.Hour),
		day,
		day.Add(9 * time.Hour),
		day.Add(23*time.Hour + 59*time.Minute),
		day.AddDate(0, 0, 1),
	}
	s, err := NewWithTimestamps(timestamps, []float64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatal(err)
	}

	r, _ := ParseDateRange("2020-01-15", "2020-01-15")
	got := Filter(s, r).Values()
	expected := []float64{2, 3, 4}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, got)
		}
	}

	for i, ts := range timestamps {
		want := i >= 1 && i <= 3
		if r.Contains(ts) != want {
			t.Errorf("Contains(%v) = %v, want %v", ts, !want, want)
		}
	}
}

func TestFilterComposes(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = float64(i)
	}
	s := New(values)

	r1 := DateRange{Start: Epoch.AddDate(0, 0, 5), End: Epoch.AddDate(0, 0, 40)}
	r2 := DateRange{Start: Epoch.AddDate(0, 0, 20), End: Epoch.AddDate(0, 0, 55)}

	twice := Filter(Filter(s, r1), r2)
	once := Filter(s, r1.Intersect(r2))

	if !twice.Equal(once) {
		t.Errorf("Filter(Filter(S,R1),R2) != Filter(S,R1∩R2): %v vs %v", twice.Values(), once.Values())
	}
	if once.Len() != 21 {
		t.Errorf("Expected 21 observations in the intersection, got %d", once.Len())
	}
}

func TestFilterIsContiguousSubsequence(t *testing.T) {
	s := weekly()
	r, _ := ParseDateRange("2020-01-05", "2020-01-20")
	got := Filter(s, r)

	offset := -1
	for i := 0; i < s.Len(); i++ {
		if s.At(i).Time.Equal(got.At(0).Time) {
			offset = i
		}
	}
	if offset < 0 {
		t.Fatal("First filtered point not found in source series")
	}
	for i := 0; i < got.Len(); i++ {
		if got.At(i) != s.At(offset+i) {
			t.Errorf("Filtered point %d does not match source point %d", i, offset+i)
		}
	}
}

func TestDateRangeString(t *testing.T) {
	r, _ := ParseDateRange("2020-01-01", "")
	if r.String() != "2020-01-01..*" {
		t.Errorf("Unexpected string %q", r.String())
	}
}
