package reason

import (
	"strings"
	"time"

	"github.com/icebreaker-llm/reason/tool"
)

// The backend interleaves reasoning and final-answer text in a single content
// stream, distinguished only by these inline markers. Tool calls arrive as a
// structurally distinct delta shape.
const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

type mode int

const (
	modeNone mode = iota
	modeReasoning
	modeMessaging
	modeToolCalling
)

// classifier is the completion parser's mode state machine. It maps each
// incoming delta to the events it implies, tracking the time spent in the
// current mode so reported durations reflect time-in-mode rather than total
// stream time. It performs no I/O and is exercised directly by tests.
type classifier struct {
	mode    mode
	started time.Time
	now     func() time.Time
}

func newClassifier() *classifier {
	return &classifier{now: time.Now}
}

func (c *classifier) switchTo(m mode) {
	c.mode = m
	c.started = c.now()
}

func (c *classifier) elapsed() time.Duration {
	return c.now().Sub(c.started)
}

// text classifies one text delta.
//
// Marker deltas only transition the mode; their text is never emitted. The
// first plain text delta opens a message output before carrying its text.
func (c *classifier) text(content string) []Event {
	switch {
	case (c.mode == modeNone || c.mode == modeMessaging) && strings.Contains(content, reasoningOpen):
		c.switchTo(modeReasoning)
		return []Event{outputAdded(NewReasoning())}

	case c.mode == modeReasoning && strings.Contains(content, reasoningClose):
		// Back to no mode so the next plain delta opens a fresh message
		// output instead of extending the closed reasoning.
		c.switchTo(modeNone)
		return nil

	case c.mode == modeNone:
		c.switchTo(modeMessaging)
		return []Event{
			outputAdded(NewMessage("")),
			textChanged(content, c.elapsed()),
		}

	case c.mode == modeReasoning || c.mode == modeMessaging:
		return []Event{textChanged(content, c.elapsed())}

	default:
		// Stray text while tool-calling carries no structure.
		return nil
	}
}

// toolCall classifies one tool-call delta. A delta carrying an id introduces
// a new call; one without continues the most recent call's arguments.
func (c *classifier) toolCall(delta toolCallDelta) []Event {
	var events []Event

	if c.mode != modeToolCalling {
		c.switchTo(modeToolCalling)
		events = append(events, outputAdded(NewToolCalls()))
	}

	if delta.ID != "" {
		events = append(events, toolCallAdded(
			tool.ID(delta.ID),
			delta.Function.Name,
			delta.Function.Arguments,
		))
	} else {
		events = append(events, argumentsChanged(delta.Function.Arguments, c.elapsed()))
	}

	return events
}
