package packml

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultFaultProbability is the per-band fault probability used when a
// station does not configure its own.
const DefaultFaultProbability = 0.01

// FaultInjector draws one uniform sample per checkpoint and maps disjoint
// bands of it to at most one signal:
//
//	[0,p)   -> abort
//	[p,2p)  -> stop
//	[2p,3p) -> hold     (only while executing)
//	[3p,4p) -> suspend  (only while executing)
//
// A single draw per checkpoint keeps the four rates independently tunable
// through one probability and rules out correlated multi-fault triggers.
type FaultInjector struct {
	mu  sync.Mutex
	p   float64
	rng *rand.Rand
}

// NewFaultInjector creates an injector with the given per-band probability.
// A nil source seeds from the wall clock; tests inject a fixed seed to force
// each band deterministically.
func NewFaultInjector(probability float64, src rand.Source) *FaultInjector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &FaultInjector{
		p:   probability,
		rng: rand.New(src),
	}
}

// Sample draws one value and returns the signal of the band it falls into,
// or SignalNone. Hold and Suspend bands are only live while executing.
func (f *FaultInjector) Sample(executing bool) Signal {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.rng.Float64()
	switch {
	case r < f.p:
		return SignalAbort
	case r < 2*f.p:
		return SignalStop
	case executing && r < 3*f.p:
		return SignalHold
	case executing && r < 4*f.p:
		return SignalSuspend
	default:
		return SignalNone
	}
}

// SetProbability changes the per-band probability at runtime.
func (f *FaultInjector) SetProbability(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.p = p
}

// Probability returns the current per-band probability.
func (f *FaultInjector) Probability() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p
}
