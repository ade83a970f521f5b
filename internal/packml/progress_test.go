package packml

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProgressPublisher struct {
	mu     sync.Mutex
	ratios []float64
}

func (r *recordingProgressPublisher) PublishProgress(stationID string, ratio float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratios = append(r.ratios, ratio)
	return nil
}

func (r *recordingProgressPublisher) published() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.ratios))
	copy(out, r.ratios)
	return out
}

type fakeProgressSource struct {
	mu      sync.Mutex
	state   State
	elapsed time.Duration
	total   time.Duration
}

func (f *fakeProgressSource) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeProgressSource) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

func (f *fakeProgressSource) TotalBudget() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *fakeProgressSource) set(state State, elapsed time.Duration) {
	f.mu.Lock()
	f.state = state
	f.elapsed = elapsed
	f.mu.Unlock()
}

func TestProgressMonitorPublishesRatios(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateExecute, total: 100 * time.Millisecond}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)
	pm.Start(src)

	src.set(StateExecute, 50*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	src.set(StateExecute, 200*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	pm.Stop()

	ratios := pub.published()
	require.NotEmpty(t, ratios)

	// Ratios are monotone here and clamped to 1.0.
	for i := 1; i < len(ratios); i++ {
		assert.GreaterOrEqual(t, ratios[i], ratios[i-1])
		assert.LessOrEqual(t, ratios[i], 1.0)
	}
	assert.Equal(t, 1.0, ratios[len(ratios)-1])
}

func TestProgressMonitorPublishesOnlyOnChange(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateExecute, elapsed: 40 * time.Millisecond, total: 80 * time.Millisecond}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)
	pm.Start(src)
	time.Sleep(50 * time.Millisecond)
	pm.Stop()

	// The source never moves, so exactly one value goes out.
	assert.Equal(t, []float64{0.5}, pub.published())
}

func TestProgressMonitorSilentOutsideExecute(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateHeld, elapsed: 10 * time.Millisecond, total: 100 * time.Millisecond}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)
	pm.Start(src)
	time.Sleep(30 * time.Millisecond)
	pm.Stop()

	assert.Empty(t, pub.published())
}

func TestProgressMonitorNoBudgetNoStart(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateExecute, total: 0}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)
	pm.Start(src)
	time.Sleep(20 * time.Millisecond)
	pm.Stop()

	assert.Empty(t, pub.published())
}

func TestProgressMonitorRestartable(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateExecute, elapsed: 25 * time.Millisecond, total: 100 * time.Millisecond}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)

	// Execute -> Hold -> Execute cycle: each re-entry restarts fresh.
	pm.Start(src)
	time.Sleep(20 * time.Millisecond)
	pm.Stop()

	first := len(pub.published())
	require.NotZero(t, first)

	src.set(StateExecute, 75*time.Millisecond)
	pm.Start(src)
	time.Sleep(20 * time.Millisecond)
	pm.Stop()

	ratios := pub.published()
	assert.Greater(t, len(ratios), first)
	assert.Equal(t, 0.75, ratios[len(ratios)-1])
}

func TestProgressMonitorStopIdempotent(t *testing.T) {
	pub := &recordingProgressPublisher{}
	src := &fakeProgressSource{state: StateExecute, total: 100 * time.Millisecond}

	pm := NewProgressMonitor(zap.NewNop(), pub, "st-1", 5*time.Millisecond, 100*time.Millisecond)
	pm.Stop() // never started
	pm.Start(src)
	pm.Stop()
	pm.Stop()
}
