package stats

import (
	"fmt"
	"math"
)

const minLjungBox = 10

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
}

// Rejects reports whether the no-autocorrelation hypothesis is rejected at alpha.
func (r *LjungBoxResult) Rejects(alpha float64) bool {
	return r.PValue < alpha
}

// LjungBox tests the null hypothesis that values have no autocorrelation up
// to lag h. Q = n(n+2) Σ ρ²(k)/(n-k), compared against χ²(h).
func LjungBox(values []float64, lags int) (*LjungBoxResult, error) {
	n := len(values)
	if n < minLjungBox {
		return nil, fmt.Errorf("%w: Ljung-Box needs %d observations, got %d", ErrTooShort, minLjungBox, n)
	}
	acf, err := ACF(values, lags)
	if err != nil {
		return nil, err
	}
	h := len(acf) - 1

	q := 0.0
	for k := 1; k <= h; k++ {
		q += acf[k] * acf[k] / float64(n-k)
	}
	q *= float64(n * (n + 2))

	return &LjungBoxResult{
		Statistic: q,
		PValue:    1 - chiSquaredCDF(q, h),
		Lags:      h,
	}, nil
}

// chiSquaredCDF is P(k/2, x/2), the regularized lower incomplete gamma.
func chiSquaredCDF(x float64, k int) float64 {
	if x <= 0 || k <= 0 {
		return 0
	}
	a := float64(k) / 2
	if x/2 < a+1 {
		return gammaPSeries(a, x/2)
	}
	return 1 - gammaQContinued(a, x/2)
}

// gammaPSeries expands P(a, x) as a power series; converges for x < a+1.
func gammaPSeries(a, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-10
	)
	lg, _ := math.Lgamma(a)

	ap := a
	sum := 1.0 / a
	del := sum
	for n := 1; n < maxIter; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-lg)
}

// gammaQContinued evaluates Q(a, x) = 1 - P(a, x) with Lentz's continued fraction.
func gammaQContinued(a, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-10
		fpmin   = 1e-30
	)
	lg, _ := math.Lgamma(a)

	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-lg) * h
}
