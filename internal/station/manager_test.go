package station

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/PackStationCore/internal/config"
	"github.com/KevinKickass/PackStationCore/internal/packml"
)

func testDefaults() config.StationConfig {
	return config.StationConfig{
		TransitionDelay:     0,
		ProgressInterval:    5 * time.Millisecond,
		MonitorJoinTimeout:  200 * time.Millisecond,
		ProcessPollInterval: 2 * time.Millisecond,
		FaultProbability:    0,
	}
}

func TestManagerBuildsStations(t *testing.T) {
	p := 0.5
	defs := []config.StationDef{
		{ID: "filler", Process: "dwell"},
		{ID: "mover", Process: "move", Segments: 3, FaultProbability: &p},
	}

	m, err := NewManager(zap.NewNop(), testDefaults(), defs, nil, nil, nil)
	require.NoError(t, err)

	_, ok := m.Get("filler")
	assert.True(t, ok)
	_, ok = m.Get("unknown")
	assert.False(t, ok)

	// List is ordered by id.
	statuses := m.List()
	require.Len(t, statuses, 2)
	assert.Equal(t, "filler", statuses[0].ID)
	assert.Equal(t, "mover", statuses[1].ID)
	for _, st := range statuses {
		assert.Equal(t, packml.StateIdle, st.State)
	}
}

func TestManagerRejectsUnknownProcess(t *testing.T) {
	defs := []config.StationDef{{ID: "x", Process: "teleport"}}

	_, err := NewManager(zap.NewNop(), testDefaults(), defs, nil, nil, nil)
	assert.Error(t, err)
}

func TestManagerStartStopAll(t *testing.T) {
	defs := []config.StationDef{
		{ID: "a", DefaultDuration: 10 * time.Millisecond},
		{ID: "b", DefaultDuration: 10 * time.Millisecond},
	}

	m, err := NewManager(zap.NewNop(), testDefaults(), defs, nil, nil, nil)
	require.NoError(t, err)

	m.StartAll()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, m.StopAll(ctx))
}
