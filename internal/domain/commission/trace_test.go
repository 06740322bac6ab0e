package commission

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_String(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"ping", Event{Kind: EventPing, Fields: map[string]string{"run_key": "RK", "force_run": "1"}}, "PING force_run=1 run_key=RK"},
		{"step keeps message only", Event{Kind: EventStep, Message: "STEP 1 rows", Fields: map[string]string{"rows": "3"}}, "STEP 1 rows rows=3"},
		{"calc with salesperson", Event{Kind: EventCalc, SalesPerson: "Alice", Fields: map[string]string{"total": "85000"}}, "SP=Alice total=85000"},
		{"skip", Event{Kind: EventSkip, SalesPerson: "Bob", Message: "commission<=0"}, "SKIP SP=Bob commission<=0"},
		{"stop", Event{Kind: EventStop, Message: "FORCE_RUN=0"}, "STOP FORCE_RUN=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.String())
		})
	}
}

func TestTrace_RenderKeepsLastEntries(t *testing.T) {
	trace := NewTrace()
	for i := 0; i < 10; i++ {
		trace.Append(EventStep, fmt.Sprintf("line %d", i), nil)
	}

	assert.Equal(t, 10, trace.Len())

	lines := strings.Split(trace.Render(3), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"line 7", "line 8", "line 9"}, lines)

	assert.Len(t, strings.Split(trace.Render(0), "\n"), 10)
	assert.Len(t, strings.Split(trace.Render(100), "\n"), 10)
}

func TestTrace_Count(t *testing.T) {
	trace := NewTrace()
	trace.AppendFor(EventCreated, "Alice", "DRAFT ADS-1", nil)
	trace.AppendFor(EventError, "Bob", "", map[string]string{"msg": "boom"})
	trace.AppendFor(EventCreated, "Carol", "DRAFT ADS-2", nil)

	assert.Equal(t, 2, trace.Count(EventCreated))
	assert.Equal(t, 1, trace.Count(EventError))
	assert.Equal(t, 0, trace.Count(EventDone))

	events := trace.Events()
	events[0].SalesPerson = "changed"
	assert.Equal(t, "Alice", trace.Events()[0].SalesPerson)
}
