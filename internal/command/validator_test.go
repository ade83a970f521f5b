package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAcceptsWellFormedRequests(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	valid := []string{
		`{}`,
		`{"id": "fill-42"}`,
		`{"duration_ms": 5000}`,
		`{"id": "fill-42", "duration_ms": 5000, "max_duration_ms": 8000}`,
		`{"id": "fill-42", "parameters": {"recipe": "std", "volume_ml": 330}}`,
	}
	for _, body := range valid {
		assert.NoError(t, v.ValidateRequest([]byte(body)), "body: %s", body)
	}
}

func TestValidatorRejectsBadRequests(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	invalid := []string{
		`not json`,
		`[]`,
		`{"id": 42}`,
		`{"duration_ms": -1}`,
		`{"duration_ms": "5s"}`,
		`{"parameters": "flat"}`,
		`{"unknown_field": true}`,
	}
	for _, body := range invalid {
		assert.Error(t, v.ValidateRequest([]byte(body)), "body: %s", body)
	}
}
