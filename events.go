package reason

import (
	"time"

	"github.com/icebreaker-llm/reason/tool"
)

// EventType identifies the kind of a completion event.
type EventType string

const (
	// EventOutputAdded signals that a new output began streaming.
	EventOutputAdded EventType = "output_added"
	// EventTextChanged carries a text delta for the current output.
	EventTextChanged EventType = "text_changed"
	// EventToolCallAdded signals a new tool call on the current output.
	EventToolCallAdded EventType = "tool_call_added"
	// EventArgumentsChanged carries an argument fragment for the latest call.
	EventArgumentsChanged EventType = "arguments_changed"
)

// Event is one incremental notification from a streaming completion. Events
// are transient: they are folded into a Reply and never persisted.
type Event struct {
	Type EventType

	// Output is set for EventOutputAdded.
	Output *Output

	// Delta is set for EventTextChanged and EventArgumentsChanged.
	Delta string

	// Duration is the time spent in the current mode when the delta arrived.
	Duration time.Duration

	// ID, Name, and Arguments are set for EventToolCallAdded.
	ID        tool.ID
	Name      string
	Arguments string
}

// Text returns the displayable text carried by the event, if any.
func (e Event) Text() (string, bool) {
	switch e.Type {
	case EventOutputAdded:
		return e.Output.Text()
	case EventTextChanged:
		return e.Delta, true
	default:
		return "", false
	}
}

func outputAdded(output Output) Event {
	return Event{Type: EventOutputAdded, Output: &output}
}

func textChanged(delta string, duration time.Duration) Event {
	return Event{Type: EventTextChanged, Delta: delta, Duration: duration}
}

func toolCallAdded(id tool.ID, name, arguments string) Event {
	return Event{Type: EventToolCallAdded, ID: id, Name: name, Arguments: arguments}
}

func argumentsChanged(delta string, duration time.Duration) Event {
	return Event{Type: EventArgumentsChanged, Delta: delta, Duration: duration}
}

// BootEventType identifies the kind of a boot notification.
type BootEventType string

const (
	// BootProgressed reports a new boot stage and completion percentage.
	BootProgressed BootEventType = "progressed"
	// BootLogged forwards one log line from the launching executor.
	BootLogged BootEventType = "logged"
)

// BootEvent is one progress notification from a boot operation.
type BootEvent struct {
	Type BootEventType

	// Stage and Percent are set for BootProgressed.
	Stage   string
	Percent int

	// Log is set for BootLogged.
	Log string
}

func progressed(stage string, percent int) BootEvent {
	return BootEvent{Type: BootProgressed, Stage: stage, Percent: percent}
}

func logged(line string) BootEvent {
	return BootEvent{Type: BootLogged, Log: line}
}
