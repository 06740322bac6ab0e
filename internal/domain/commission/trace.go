package commission

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventKind classifies a trace event
type EventKind string

const (
	EventPing     EventKind = "PING"
	EventStop     EventKind = "STOP"
	EventStep     EventKind = "STEP"
	EventCalc     EventKind = "CALC"
	EventSkip     EventKind = "SKIP"
	EventCreated  EventKind = "CREATED"
	EventUpdated  EventKind = "UPDATED"
	EventError    EventKind = "ERROR"
	EventDone     EventKind = "DONE"
	EventDisabled EventKind = "DISABLED"
)

// Trace limits applied when the trace is persisted
const (
	SkippedTraceLimit = 300
	ResultTraceLimit  = 350
)

// Event is one milestone of a run
type Event struct {
	At          time.Time
	Kind        EventKind
	SalesPerson string
	Message     string
	Fields      map[string]string
}

// String renders the event as a single trace line
func (e Event) String() string {
	parts := make([]string, 0, 3+len(e.Fields))
	if e.Kind != EventStep && e.Kind != EventCalc {
		parts = append(parts, string(e.Kind))
	}
	if e.SalesPerson != "" {
		parts = append(parts, "SP="+e.SalesPerson)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, e.Fields[k]))
	}
	return strings.Join(parts, " ")
}

// Trace is the append-only event list of one run
type Trace struct {
	events []Event
	now    func() time.Time
}

// NewTrace creates an empty trace
func NewTrace() *Trace {
	return &Trace{now: time.Now}
}

// Append records an event
func (t *Trace) Append(kind EventKind, message string, fields map[string]string) {
	t.events = append(t.events, Event{At: t.now(), Kind: kind, Message: message, Fields: fields})
}

// AppendFor records an event about one salesperson
func (t *Trace) AppendFor(kind EventKind, salesPerson, message string, fields map[string]string) {
	t.events = append(t.events, Event{At: t.now(), Kind: kind, SalesPerson: salesPerson, Message: message, Fields: fields})
}

// Events returns a copy of all events
func (t *Trace) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of events
func (t *Trace) Len() int {
	return len(t.events)
}

// Count returns the number of events of the given kind
func (t *Trace) Count(kind EventKind) int {
	n := 0
	for _, e := range t.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent limit events (all when limit <= 0)
func (t *Trace) Last(limit int) []Event {
	if limit <= 0 || limit >= len(t.events) {
		return t.Events()
	}
	out := make([]Event, limit)
	copy(out, t.events[len(t.events)-limit:])
	return out
}

// Render joins the most recent limit events into newline separated text
func (t *Trace) Render(limit int) string {
	events := t.Last(limit)
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}
