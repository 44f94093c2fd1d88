package dispatch

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Stream identifies which output stream a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one piece of output, forwarded as soon as it is read.
type Chunk struct {
	Text   string
	Stream Stream
}

// Outcome is the final event of every execution.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Event carries exactly one of Chunk or Outcome.
type Event struct {
	Chunk   *Chunk
	Outcome *Outcome
}

// Execution is the handle for one Run call. Its event sequence is finite,
// ends with one Outcome, and cannot be restarted.
type Execution struct {
	ID      string
	Command string

	events chan Event
	once   sync.Once

	// accumulated output, written only by the stream that owns it
	stdout strings.Builder
	stderr strings.Builder
	mu     sync.Mutex

	outcome Outcome
}

func newExecution(command string) *Execution {
	return &Execution{
		ID:      uuid.NewString(),
		Command: command,
		events:  make(chan Event, 64),
	}
}

// Events returns the event stream. It is closed right after the Outcome.
func (e *Execution) Events() <-chan Event {
	return e.events
}

// Wait discards any unread events and returns the outcome.
func (e *Execution) Wait() Outcome {
	for range e.events {
	}
	return e.outcome
}

func (e *Execution) emit(stream Stream, text string) {
	e.mu.Lock()
	if stream == Stderr {
		e.stderr.WriteString(text)
	} else {
		e.stdout.WriteString(text)
	}
	e.mu.Unlock()
	e.events <- Event{Chunk: &Chunk{Text: text, Stream: stream}}
}

// finish sends the outcome and closes the stream. Later calls are ignored.
func (e *Execution) finish(code int) {
	e.once.Do(func() {
		e.mu.Lock()
		e.outcome = Outcome{ExitCode: code, Stdout: e.stdout.String(), Stderr: e.stderr.String()}
		e.mu.Unlock()
		out := e.outcome
		e.events <- Event{Outcome: &out}
		close(e.events)
	})
}
