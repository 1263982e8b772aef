package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/lo"

	"github.com/icebreaker-llm/reason/tool"
)

const (
	dataPrefix       = "data:"
	streamTerminator = "[DONE]"
)

// streamingClient carries no timeout: completion responses stream for as long
// as the model keeps generating.
var streamingClient = &http.Client{}

// Completion is an in-flight streaming chat completion. Events are delivered
// on Events until the response body is exhausted; all structure travels in
// the events, so Wait resolves to an error or nothing.
type Completion struct {
	op *operation[Event, struct{}]
}

// Events returns the completion's event stream. The channel is closed when
// the completion resolves.
func (c *Completion) Events() <-chan Event {
	return c.op.events
}

// Wait blocks until the completion resolves, discarding any undrained events.
func (c *Completion) Wait(ctx context.Context) error {
	_, err := c.op.wait(ctx)
	return err
}

// Complete issues one streaming chat-completion request for the conversation
// formed by messages followed by appended, declaring tools to the model. The
// incremental response is classified into reasoning, message, and tool-call
// events.
func (r *Reason) Complete(ctx context.Context, messages, appended []Message, tools []tool.Tool) *Completion {
	op := newOperation[Event, struct{}]()

	go func() {
		op.resolve(struct{}{}, r.complete(ctx, messages, appended, tools, op))
	}()

	return &Completion{op: op}
}

func (r *Reason) complete(
	ctx context.Context,
	messages, appended []Message,
	tools []tool.Tool,
	op *operation[Event, struct{}],
) error {
	conversation := make([]Message, 0, len(messages)+len(appended))
	conversation = append(conversation, messages...)
	conversation = append(conversation, appended...)

	if tools == nil {
		tools = []tool.Tool{}
	}

	payload := map[string]any{
		"model": r.name,
		"messages": lo.Map(conversation, func(message Message, _ int) map[string]any {
			return message.toWire()
		}),
		"tools":        tools,
		"stream":       true,
		"cache_prompt": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return newSerdeError("failed to encode completion request", err)
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.server.baseURL()+"/v1/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return newRequestError("failed to build completion request", err)
	}
	request.Header.Set("Content-Type", "application/json")

	r.logger.Debug().
		Str("model", r.name).
		Int("messages", len(conversation)).
		Int("tools", len(tools)).
		Msg("Starting streaming completion")

	response, err := streamingClient.Do(request)
	if err != nil {
		return newRequestError("completion request failed", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return newRequestError(
			fmt.Sprintf("completion request failed with status %d", response.StatusCode),
			nil,
		)
	}

	frames := &lineBuffer{}
	classify := newClassifier()
	chunk := make([]byte, 8192)

	for {
		n, readErr := response.Body.Read(chunk)

		if n > 0 {
			for _, line := range frames.feed(chunk[:n]) {
				delta, ok := parseDelta(line)
				if !ok {
					continue
				}

				var events []Event
				switch {
				case delta.Content != nil:
					events = classify.text(*delta.Content)
				case len(delta.ToolCalls) > 0:
					events = classify.toolCall(delta.ToolCalls[0])
				}

				for _, event := range events {
					op.send(ctx, event)
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return newRequestError("failed to read completion stream", readErr)
		}
	}
}

// streamData is the per-line payload of the chat-completion event stream.
type streamData struct {
	Choices []struct {
		Delta streamDelta `json:"delta"`
	} `json:"choices"`
}

// streamDelta is one incremental fragment: text content or exactly one
// new-or-updated tool call.
type streamDelta struct {
	Content   *string         `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// parseDelta extracts the delta from one complete stream line. Lines without
// the data prefix, the [DONE] terminator, and unparseable payloads are all
// skipped: partial framing artifacts are expected, and availability of the
// remaining stream wins over strict protocol conformance.
func parseDelta(line []byte) (streamDelta, bool) {
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return streamDelta{}, false
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, []byte(streamTerminator)) {
		return streamDelta{}, false
	}

	var data streamData
	if err := json.Unmarshal(payload, &data); err != nil {
		return streamDelta{}, false
	}
	if len(data.Choices) == 0 {
		return streamDelta{}, false
	}

	return data.Choices[0].Delta, true
}

// lineBuffer reassembles newline-delimited lines from arbitrarily sized byte
// chunks. A line may span any number of chunks; a trailing fragment without
// its newline is retained as the seed for the next feed.
type lineBuffer struct {
	pending []byte
}

func (b *lineBuffer) feed(chunk []byte) [][]byte {
	b.pending = append(b.pending, chunk...)

	var lines [][]byte
	rest := b.pending
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		if i > 0 {
			lines = append(lines, append([]byte(nil), rest[:i]...))
		}
		rest = rest[i+1:]
	}

	b.pending = append([]byte(nil), rest...)
	return lines
}
