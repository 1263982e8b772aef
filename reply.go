package reason

import (
	"context"

	"github.com/icebreaker-llm/reason/tool"
)

// Reply is the fully accumulated result of one completion cycle: the ordered
// outputs of one assistant turn.
type Reply struct {
	Outputs []Output
}

// Update folds one completion event into the reply. The fold is tolerant:
// events targeting an output kind that is not current are dropped rather than
// faulting, so replaying any event sequence the completion engine can produce
// is always safe.
func (r *Reply) Update(event Event) {
	switch event.Type {
	case EventOutputAdded:
		r.Outputs = append(r.Outputs, event.Output.clone())

	case EventTextChanged:
		last := r.last()
		if last == nil {
			return
		}
		switch last.Type {
		case OutputReasoning:
			last.Reasoning.Text += event.Delta
			last.Reasoning.Duration = event.Duration
		case OutputMessage:
			last.Message += event.Delta
		}

	case EventToolCallAdded:
		last := r.last()
		if last == nil || last.Type != OutputToolCalls {
			return
		}
		last.ToolCalls = append(last.ToolCalls, tool.Call{
			ID:        event.ID,
			Name:      event.Name,
			Arguments: event.Arguments,
		})

	case EventArgumentsChanged:
		last := r.last()
		if last == nil || last.Type != OutputToolCalls || len(last.ToolCalls) == 0 {
			return
		}
		last.ToolCalls[len(last.ToolCalls)-1].Arguments += event.Delta
	}
}

func (r *Reply) last() *Output {
	if len(r.Outputs) == 0 {
		return nil
	}
	return &r.Outputs[len(r.Outputs)-1]
}

// ReplyOperation is an in-flight completion whose events are additionally
// folded into a Reply. Events are forwarded unchanged; Wait resolves to the
// accumulated Reply.
type ReplyOperation struct {
	op *operation[Event, *Reply]
}

// Events returns the forwarded completion event stream.
func (r *ReplyOperation) Events() <-chan Event {
	return r.op.events
}

// Wait blocks until the completion resolves, discarding any undrained
// events, and returns the accumulated Reply. No partial Reply is returned on
// error.
func (r *ReplyOperation) Wait(ctx context.Context) (*Reply, error) {
	return r.op.wait(ctx)
}

// Reply issues a streaming completion and accumulates its events into a
// Reply while forwarding each of them to the caller.
func (r *Reason) Reply(ctx context.Context, messages, appended []Message, tools []tool.Tool) *ReplyOperation {
	op := newOperation[Event, *Reply]()

	go func() {
		completion := r.Complete(ctx, messages, appended, tools)
		reply := &Reply{}

		for event := range completion.Events() {
			reply.Update(event)
			op.send(ctx, event)
		}

		if err := completion.Wait(ctx); err != nil {
			op.resolve(nil, err)
			return
		}

		op.resolve(reply, nil)
	}()

	return &ReplyOperation{op: op}
}
