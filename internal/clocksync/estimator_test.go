package clocksync

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestFirstSampleAdoptedOutright(t *testing.T) {
	e := New()
	base := time.Unix(1000, 0)
	e.Observe(base, base.Add(100*time.Millisecond), base.Add(50*time.Millisecond+30*time.Millisecond))
	if !e.HasEstimate() {
		t.Fatalf("want HasEstimate true after first sample")
	}
	if e.Offset() != 30*time.Millisecond {
		t.Fatalf("want first sample's offset 30ms adopted as-is, got %v", e.Offset())
	}
}

func TestConvergesToZeroOffsetUnderSymmetricRTT(t *testing.T) {
	e := New()
	rng := rand.New(rand.NewSource(7))
	base := time.Unix(1_700_000_000, 0)
	maxRTT := time.Duration(0)

	for i := 0; i < 500; i++ {
		rtt := time.Duration(10+rng.Intn(190)) * time.Millisecond
		if rtt > maxRTT {
			maxRTT = rtt
		}
		reqStart := base.Add(time.Duration(i) * time.Second)
		respRecv := reqStart.Add(rtt)
		// True offset is zero: the server timestamps the midpoint exactly.
		serverTime := reqStart.Add(rtt / 2)
		e.Observe(reqStart, respRecv, serverTime)
	}

	bound := float64(maxRTT) / 2
	if got := math.Abs(float64(e.Offset())); got > bound {
		t.Fatalf("offset %v exceeds bound ±%v (maxRTT=%v)", e.Offset(), time.Duration(bound), maxRTT)
	}
}

func TestImprovedRTTUsesSixtyFortySplit(t *testing.T) {
	e := New()
	base := time.Unix(1000, 0)
	// First sample: RTT 100ms, offset 1000ms.
	e.Observe(base, base.Add(100*time.Millisecond), base.Add(1050*time.Millisecond))
	firstOffset := e.Offset()

	// Second sample has a strictly lower RTT, so the 0.60/0.40 blend applies.
	// Its midpoint (reqStart+20ms) exactly matches the server timestamp, so
	// this sample's offset is zero.
	reqStart := base.Add(time.Second)
	e.Observe(reqStart, reqStart.Add(40*time.Millisecond), reqStart.Add(20*time.Millisecond))
	const sample = 0 * time.Millisecond

	want := time.Duration(0.60*float64(firstOffset) + 0.40*float64(sample))
	if e.Offset() != want {
		t.Fatalf("want offset %v, got %v", want, e.Offset())
	}
}
