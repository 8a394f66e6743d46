package changepoint

import "math"

// cost evaluates the L2 (mean shift) segment cost in O(1) from prefix sums.
// Values are centred on their global mean to limit cancellation.
type cost struct {
	n      int
	offset float64
	sum    []float64
	sumSq  []float64
}

func newCost(values []float64) *cost {
	n := len(values)
	offset := 0.0
	for _, v := range values {
		offset += v
	}
	if n > 0 {
		offset /= float64(n)
	}

	c := &cost{
		n:      n,
		offset: offset,
		sum:    make([]float64, n+1),
		sumSq:  make([]float64, n+1),
	}
	for i, v := range values {
		x := v - offset
		c.sum[i+1] = c.sum[i] + x
		c.sumSq[i+1] = c.sumSq[i] + x*x
	}
	return c
}

// segment returns the sum of squared deviations from the mean over [a, b).
func (c *cost) segment(a, b int) float64 {
	if b-a <= 0 {
		return 0
	}
	s := c.sum[b] - c.sum[a]
	v := c.sumSq[b] - c.sumSq[a] - s*s/float64(b-a)
	if v < 0 {
		return 0
	}
	return v
}

// mean returns the mean of values over [a, b).
func (c *cost) mean(a, b int) float64 {
	if b-a <= 0 {
		return math.NaN()
	}
	return (c.sum[b]-c.sum[a])/float64(b-a) + c.offset
}

type candidate struct {
	tau      int
	prunedAt int // first t at which tau became dominated, -1 if never
}

// pelt returns the optimal partition under cost + beta per boundary, with
// every segment at least m long.
//
// A candidate tau dominated at t (F[tau]+C(tau,t) > F[t]) can never beat t
// again, but t itself only becomes admissible at t+m, so tau is retired at
// t+m rather than immediately.
func (c *cost) pelt(m int, beta float64) []int {
	n := c.n
	f := make([]float64, n+1)
	last := make([]int, n+1)
	f[0] = -beta
	for t := 1; t < m && t <= n; t++ {
		f[t] = math.Inf(1)
	}

	candidates := []candidate{{tau: 0, prunedAt: -1}}
	for t := m; t <= n; t++ {
		best, bestTau := math.Inf(1), 0
		for _, cand := range candidates {
			if t-cand.tau < m {
				continue
			}
			v := f[cand.tau] + c.segment(cand.tau, t) + beta
			if v < best {
				best, bestTau = v, cand.tau
			}
		}
		f[t], last[t] = best, bestTau

		kept := candidates[:0]
		for _, cand := range candidates {
			if cand.prunedAt >= 0 && t >= cand.prunedAt+m {
				continue
			}
			if cand.prunedAt < 0 && cand.tau < t && f[cand.tau]+c.segment(cand.tau, t) > f[t] {
				cand.prunedAt = t
			}
			kept = append(kept, cand)
		}
		candidates = append(kept, candidate{tau: t, prunedAt: -1})
	}

	var indices []int
	for t := last[n]; t > 0; t = last[t] {
		indices = append(indices, t)
	}
	for i, j := 0, len(indices)-1; i < j; i, j = i+1, j-1 {
		indices[i], indices[j] = indices[j], indices[i]
	}
	return indices
}

// single returns the best split when its gain exceeds beta.
func (c *cost) single(m int, beta float64) []int {
	n := c.n
	total := c.segment(0, n)
	bestGain, bestK := math.Inf(-1), -1
	for k := m; k <= n-m; k++ {
		gain := total - c.segment(0, k) - c.segment(k, n)
		if gain > bestGain {
			bestGain, bestK = gain, k
		}
	}
	if bestK < 0 || bestGain <= beta {
		return nil
	}
	return []int{bestK}
}
