package reason

import (
	"time"

	"github.com/samber/lo"

	"github.com/icebreaker-llm/reason/tool"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single conversation turn. The ordered sequence of messages is
// the literal turn order sent to the backend.
//
// Exactly one of Content, Output, or Tool is meaningful depending on Role:
// system and user messages carry Content, assistant messages carry Output,
// and tool messages carry Tool.
type Message struct {
	Role    Role
	Content string
	Output  *Output
	Tool    *tool.Response
}

// System builds a system message.
func System(prompt string) Message {
	return Message{Role: RoleSystem, Content: prompt}
}

// User builds a user message.
func User(prompt string) Message {
	return Message{Role: RoleUser, Content: prompt}
}

// Assistant builds an assistant message from one completed output.
func Assistant(output Output) Message {
	return Message{Role: RoleAssistant, Output: &output}
}

// ToolResult builds a tool message carrying the result of a tool call.
func ToolResult(response tool.Response) Message {
	return Message{Role: RoleTool, Tool: &response}
}

// toWire serializes the message to the backend's chat-completion shape.
func (m Message) toWire() map[string]any {
	switch m.Role {
	case RoleAssistant:
		if m.Output == nil {
			return map[string]any{"role": "assistant", "content": ""}
		}
		switch m.Output.Type {
		case OutputToolCalls:
			calls := lo.Map(m.Output.ToolCalls, func(call tool.Call, _ int) map[string]any {
				return map[string]any{
					"id":   call.ID,
					"type": "function",
					"function": map[string]any{
						"name":      call.Name,
						"arguments": call.Arguments,
					},
				}
			})

			return map[string]any{
				"role":       "assistant",
				"tool_calls": calls,
			}
		case OutputReasoning:
			return map[string]any{
				"role":    "assistant",
				"content": m.Output.Reasoning.Text,
			}
		default:
			return map[string]any{
				"role":    "assistant",
				"content": m.Output.Message,
			}
		}
	case RoleTool:
		return map[string]any{
			"role":         "tool",
			"tool_call_id": m.Tool.ID,
			"content":      m.Tool.Content,
		}
	default:
		return map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		}
	}
}

// OutputType identifies the kind of an assistant output.
type OutputType string

const (
	OutputReasoning OutputType = "reasoning"
	OutputMessage   OutputType = "message"
	OutputToolCalls OutputType = "tool_calls"
)

// Output is one assistant turn's content: reasoning text, a final answer, or
// an ordered list of tool calls. During a streaming turn exactly one output
// is open and being extended at a time.
type Output struct {
	Type OutputType

	// Reasoning is set for OutputReasoning.
	Reasoning *Reasoning

	// Message is set for OutputMessage.
	Message string

	// ToolCalls is set for OutputToolCalls.
	ToolCalls []tool.Call
}

// Reasoning is chain-of-thought text together with the time the model spent
// producing it.
type Reasoning struct {
	Text     string
	Duration time.Duration
}

// NewReasoning builds an empty reasoning output.
func NewReasoning() Output {
	return Output{Type: OutputReasoning, Reasoning: &Reasoning{}}
}

// NewMessage builds a message output with the given text.
func NewMessage(text string) Output {
	return Output{Type: OutputMessage, Message: text}
}

// NewToolCalls builds a tool-calls output.
func NewToolCalls(calls ...tool.Call) Output {
	return Output{Type: OutputToolCalls, ToolCalls: calls}
}

// Text returns the textual content of the output, if any. Tool-call outputs
// have none.
func (o Output) Text() (string, bool) {
	switch o.Type {
	case OutputReasoning:
		return o.Reasoning.Text, true
	case OutputMessage:
		return o.Message, true
	default:
		return "", false
	}
}

// clone deep-copies the output so folded replies never alias classifier state.
func (o Output) clone() Output {
	out := o
	if o.Reasoning != nil {
		reasoning := *o.Reasoning
		out.Reasoning = &reasoning
	}
	if o.ToolCalls != nil {
		out.ToolCalls = append([]tool.Call(nil), o.ToolCalls...)
	}
	return out
}
