package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StationDef is one station entry from the stations file. Zero values
// inherit the service-wide defaults from StationConfig.
type StationDef struct {
	ID               string        `yaml:"id"`
	Process          string        `yaml:"process"` // dwell | move
	Segments         int           `yaml:"segments,omitempty"`
	FaultProbability *float64      `yaml:"fault_probability,omitempty"`
	Seed             *int64        `yaml:"seed,omitempty"`
	DefaultDuration  time.Duration `yaml:"default_duration,omitempty"`
}

// UnmarshalYAML decodes a station entry, parsing default_duration from a
// Go duration string ("5s", "250ms").
func (s *StationDef) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		ID               string   `yaml:"id"`
		Process          string   `yaml:"process"`
		Segments         int      `yaml:"segments"`
		FaultProbability *float64 `yaml:"fault_probability"`
		Seed             *int64   `yaml:"seed"`
		DefaultDuration  string   `yaml:"default_duration"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	s.ID = aux.ID
	s.Process = aux.Process
	s.Segments = aux.Segments
	s.FaultProbability = aux.FaultProbability
	s.Seed = aux.Seed

	if aux.DefaultDuration != "" {
		d, err := time.ParseDuration(aux.DefaultDuration)
		if err != nil {
			return fmt.Errorf("station %s: invalid default_duration: %w", aux.ID, err)
		}
		s.DefaultDuration = d
	}
	return nil
}

type stationsFile struct {
	Stations []StationDef `yaml:"stations"`
}

// LoadStations reads and validates the station definition file.
func LoadStations(path string) ([]StationDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file: %w", err)
	}

	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stations file: %w", err)
	}

	if len(file.Stations) == 0 {
		return nil, fmt.Errorf("stations file %s defines no stations", path)
	}

	seen := make(map[string]bool)
	for i, def := range file.Stations {
		if def.ID == "" {
			return nil, fmt.Errorf("station %d has no id", i)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("duplicate station id: %s", def.ID)
		}
		seen[def.ID] = true

		switch def.Process {
		case "", "dwell", "move":
		default:
			return nil, fmt.Errorf("station %s: unknown process kind %q", def.ID, def.Process)
		}
	}

	return file.Stations, nil
}
