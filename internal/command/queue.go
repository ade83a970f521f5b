package command

import "sync"

// Queue is the ordered register of pending commands for one station. It is
// the only structure mutated by more than one caller, so every operation
// runs under its mutex. At most one command is active at a time; the
// active command is popped out of the pending list the instant it is
// dispatched.
type Queue struct {
	mu       sync.Mutex
	order    []string
	byID     map[string]*Command
	activeID string
}

func NewQueue() *Queue {
	return &Queue{
		byID: make(map[string]*Command),
	}
}

// Enqueue appends the command to the tail. Duplicate identifiers
// (including the currently active one) are ignored, not rejected; the
// return value reports whether the command was newly added.
func (q *Queue) Enqueue(cmd *Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[cmd.ID]; exists {
		return false
	}
	if cmd.ID == q.activeID {
		return false
	}

	q.byID[cmd.ID] = cmd
	q.order = append(q.order, cmd.ID)
	return true
}

// Unregister removes a queued command. Removing the active command is
// rejected; it stays active until the machine naturally clears it.
func (q *Queue) Unregister(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == q.activeID {
		return false
	}
	if _, exists := q.byID[id]; !exists {
		return false
	}

	delete(q.byID, id)
	for i, queued := range q.order {
		if queued == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// TryDispatch pops the head and marks it active, or returns nil when a
// command is already active or the queue is empty. The check-and-set is
// atomic, which is what upholds the single-active invariant under
// concurrent enqueues.
func (q *Queue) TryDispatch() *Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.activeID != "" || len(q.order) == 0 {
		return nil
	}

	id := q.order[0]
	q.order = q.order[1:]
	cmd := q.byID[id]
	delete(q.byID, id)
	q.activeID = id
	return cmd
}

// Release clears the active mark if it matches id. Idempotent; the
// machine calls it on every entry into Idle or Resetting.
func (q *Queue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.activeID == id {
		q.activeID = ""
	}
}

// Active returns the identifier of the dispatched command, or empty.
func (q *Queue) Active() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.activeID
}

// Pending returns a copy of the queued identifiers in FIFO order. The
// active identifier is never part of this list.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out
}

// Len returns the number of queued (not active) commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
