package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStationsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStations(t *testing.T) {
	path := writeStationsFile(t, `
stations:
  - id: filling-station
    process: dwell
    default_duration: 5s
  - id: mover-1
    process: move
    segments: 6
    fault_probability: 0.02
    seed: 1234
`)

	defs, err := LoadStations(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "filling-station", defs[0].ID)
	assert.Equal(t, "dwell", defs[0].Process)
	assert.Equal(t, 5*time.Second, defs[0].DefaultDuration)
	assert.Nil(t, defs[0].FaultProbability)

	assert.Equal(t, "mover-1", defs[1].ID)
	assert.Equal(t, 6, defs[1].Segments)
	require.NotNil(t, defs[1].FaultProbability)
	assert.Equal(t, 0.02, *defs[1].FaultProbability)
	require.NotNil(t, defs[1].Seed)
	assert.Equal(t, int64(1234), *defs[1].Seed)
}

func TestLoadStationsRejectsMissingID(t *testing.T) {
	path := writeStationsFile(t, `
stations:
  - process: dwell
`)
	_, err := LoadStations(path)
	assert.Error(t, err)
}

func TestLoadStationsRejectsDuplicateID(t *testing.T) {
	path := writeStationsFile(t, `
stations:
  - id: a
  - id: a
`)
	_, err := LoadStations(path)
	assert.Error(t, err)
}

func TestLoadStationsRejectsUnknownProcess(t *testing.T) {
	path := writeStationsFile(t, `
stations:
  - id: a
    process: teleport
`)
	_, err := LoadStations(path)
	assert.Error(t, err)
}

func TestLoadStationsRejectsEmptyFile(t *testing.T) {
	path := writeStationsFile(t, `stations: []`)
	_, err := LoadStations(path)
	assert.Error(t, err)
}

func TestLoadStationsMissingFile(t *testing.T) {
	_, err := LoadStations(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
