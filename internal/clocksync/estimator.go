// Package clocksync implements the client-side RTT-weighted offset
// estimator from spec.md §4.8: without requiring NTP, it biases the
// server-clock estimate toward whichever sample had the lowest round-trip
// time, since a lower RTT means the midpoint assumption (server time at
// receipt ≈ t_s + RTT/2) is more likely to be accurate.
package clocksync

import "time"

// Estimator tracks a running RTT-weighted estimate of the offset between
// local and server wall-clock time, blended from every sample observed.
type Estimator struct {
	hasEstimate bool
	bestRTT     time.Duration
	offset      time.Duration
}

// New returns an estimator with no prior samples.
func New() *Estimator {
	return &Estimator{}
}

// Observe folds in one HTTP round trip: reqStart and respRecv are local
// timestamps bracketing the request, and serverTime is the timestamp the
// response carried. The weighting follows spec.md §4.8 exactly:
//   - first sample: adopt it outright, record its RTT as best.
//   - an improved RTT: 0.60 existing + 0.40 new (trust the new sample more,
//     but the old one was already reasonably accurate).
//   - anything else: 0.85 existing + 0.15 new (a noisier sample should
//     barely move the estimate).
func (e *Estimator) Observe(reqStart, respRecv, serverTime time.Time) {
	rtt := respRecv.Sub(reqStart)
	if rtt < 0 {
		rtt = 0
	}
	midpoint := reqStart.Add(rtt / 2)
	sample := serverTime.Sub(midpoint)

	if !e.hasEstimate {
		e.offset = sample
		e.bestRTT = rtt
		e.hasEstimate = true
		return
	}
	if rtt < e.bestRTT {
		e.bestRTT = rtt
		e.offset = weightedSum(e.offset, 0.60, sample, 0.40)
		return
	}
	e.offset = weightedSum(e.offset, 0.85, sample, 0.15)
}

func weightedSum(a time.Duration, wa float64, b time.Duration, wb float64) time.Duration {
	return time.Duration(wa*float64(a) + wb*float64(b))
}

// Now returns the estimated server wall-clock time corresponding to the
// given local time.
func (e *Estimator) Now(local time.Time) time.Time {
	return local.Add(e.offset)
}

// Offset returns the current offset estimate (server time minus local
// time), mostly useful for tests and diagnostics.
func (e *Estimator) Offset() time.Duration {
	return e.offset
}

// HasEstimate reports whether at least one sample has been observed.
func (e *Estimator) HasEstimate() bool {
	return e.hasEstimate
}
