package command

import (
	"time"

	"github.com/google/uuid"
)

// Command is one unit of requested work. The identifier is an opaque
// token; callers may supply their own or let New generate one. Duration is
// the requested budget for a single process step, MaxDuration caps the
// total execution time across Hold/Suspend resumes. Parameters are passed
// through to the process function untouched.
type Command struct {
	ID          string         `json:"id"`
	Duration    time.Duration  `json:"duration,omitempty"`
	MaxDuration time.Duration  `json:"max_duration,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
}

// New builds a command, generating an identifier when none is given.
func New(id string, duration, maxDuration time.Duration, params map[string]any) *Command {
	if id == "" {
		id = uuid.NewString()
	}
	return &Command{
		ID:          id,
		Duration:    duration,
		MaxDuration: maxDuration,
		Parameters:  params,
		EnqueuedAt:  time.Now(),
	}
}
