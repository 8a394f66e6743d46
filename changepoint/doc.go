// Package changepoint detects mean shifts in a price series.
//
// Two variants are available. MethodPELT finds the optimal partition of the
// series into any number of segments under a squared-error cost plus a
// penalty per boundary, using the Pruned Exact Linear Time search.
// MethodSingle tests for at most one change.
//
// # Usage
//
//	cfg := changepoint.DefaultConfig()
//	cfg.MinSegment = 12
//	set, err := changepoint.Detect(series, cfg)
//	for _, p := range set.Points {
//	    fmt.Printf("%s score=%.2f %.2f -> %.2f\n",
//	        timeseries.FormatDate(p.Time), p.Score, p.MeanBefore, p.MeanAfter)
//	}
//
// # Sensitivity
//
// The absolute penalty is Penalty·σ²·ln(n). Penalty 2 corresponds to the
// BIC for a Gaussian mean-shift model with known variance. MinSegment bounds
// the distance between boundaries; a series shorter than 2·MinSegment
// always yields an empty set.
//
// # Determinism
//
// Detection has no randomness. When two candidate boundaries have equal
// cost the earlier one is chosen, and MaxPoints ranks by score with ties
// resolved by index.
//
// # References
//
//   - Killick, R., Fearnhead, P., & Eckley, I. A. (2012). Optimal detection of
//     changepoints with a linear computational cost. JASA 107(500).
package changepoint
