package reason

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/icebreaker-llm/reason/tool"
)

func TestLineBufferReassemblesSplitLines(t *testing.T) {
	buffer := &lineBuffer{}

	lines := buffer.feed([]byte("data: {\"a\""))
	if len(lines) != 0 {
		t.Fatalf("Expected no complete lines yet, got %d", len(lines))
	}

	lines = buffer.feed([]byte(":1}\ndata: "))
	if len(lines) != 1 {
		t.Fatalf("Expected 1 complete line, got %d", len(lines))
	}
	if string(lines[0]) != "data: {\"a\":1}" {
		t.Errorf("Expected reassembled line, got %q", lines[0])
	}

	lines = buffer.feed([]byte("[DONE]\n"))
	if len(lines) != 1 {
		t.Fatalf("Expected 1 complete line, got %d", len(lines))
	}
	if string(lines[0]) != "data: [DONE]" {
		t.Errorf("Expected terminator line, got %q", lines[0])
	}

	// Buffer ends exactly on a newline: nothing pending.
	if len(buffer.pending) != 0 {
		t.Errorf("Expected empty pending buffer, got %q", buffer.pending)
	}
}

func TestLineBufferChunkSizeInvariance(t *testing.T) {
	payload := "data: one\ndata: two\n\ndata: three\n"

	whole := &lineBuffer{}
	wholeLines := whole.feed([]byte(payload))

	bytewise := &lineBuffer{}
	var byteLines [][]byte
	for i := 0; i < len(payload); i++ {
		byteLines = append(byteLines, bytewise.feed([]byte{payload[i]})...)
	}

	if len(wholeLines) != len(byteLines) {
		t.Fatalf(
			"Chunking changed line count: %d vs %d",
			len(wholeLines), len(byteLines),
		)
	}
	for i := range wholeLines {
		if string(wholeLines[i]) != string(byteLines[i]) {
			t.Errorf("Line %d diverged: %q vs %q", i, wholeLines[i], byteLines[i])
		}
	}
}

func TestParseDeltaSkipsNoise(t *testing.T) {
	noise := []string{
		": comment",
		"event: something",
		"data: [DONE]",
		"data: ",
		"data: {not json",
		"data: {\"choices\":[]}",
	}
	for _, line := range noise {
		if _, ok := parseDelta([]byte(line)); ok {
			t.Errorf("Expected %q to be skipped", line)
		}
	}
}

func TestParseDeltaTextAndToolCalls(t *testing.T) {
	text := `data: {"choices":[{"delta":{"content":"hi"}}]}`
	delta, ok := parseDelta([]byte(text))
	if !ok {
		t.Fatal("Expected text delta to parse")
	}
	if delta.Content == nil || *delta.Content != "hi" {
		t.Errorf("Expected content 'hi', got %+v", delta)
	}

	call := `data: {"choices":[{"delta":{"tool_calls":[{"id":"call-1","function":{"name":"compute","arguments":"{"}}]}}]}`
	delta, ok = parseDelta([]byte(call))
	if !ok {
		t.Fatal("Expected tool-call delta to parse")
	}
	if len(delta.ToolCalls) != 1 || delta.ToolCalls[0].ID != "call-1" {
		t.Errorf("Expected one new call, got %+v", delta.ToolCalls)
	}
	if delta.ToolCalls[0].Function.Name != "compute" {
		t.Errorf("Expected function name 'compute', got %+v", delta.ToolCalls[0])
	}
}

// streamHandler serves a canned SSE body, optionally one byte at a time.
func streamHandler(t *testing.T, body string, bytewise bool) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("Response writer does not support flushing")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		if bytewise {
			for i := 0; i < len(body); i++ {
				_, _ = w.Write([]byte{body[i]})
				flusher.Flush()
			}
			return
		}
		_, _ = w.Write([]byte(body))
		flusher.Flush()
	}
}

func remoteTestClient(serverURL string) *Reason {
	return &Reason{
		name:   "test-model",
		server: newRemoteExecutor(serverURL, zerolog.Nop()),
		logger: zerolog.Nop(),
	}
}

const streamBody = `data: {"choices":[{"delta":{"content":"<think>"}}]}
data: {"choices":[{"delta":{"content":"pondering"}}]}
data: {"choices":[{"delta":{"content":"</think>"}}]}
data: {"choices":[{"delta":{"content":"The answer"}}]}
data: {"choices":[{"delta":{"content":" is 42."}}]}
data: {"choices":[{"delta":{"tool_calls":[{"id":"call-1","function":{"name":"compute","arguments":"{\"a\":"}}]}}]}
data: {"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"1}"}}]}}]}
data: [DONE]
`

func collectEvents(t *testing.T, client *Reason) []Event {
	t.Helper()

	completion := client.Complete(context.Background(), []Message{User("hi")}, nil, nil)

	var events []Event
	for event := range completion.Events() {
		events = append(events, event)
	}

	if err := completion.Wait(context.Background()); err != nil {
		t.Fatalf("Expected completion to resolve cleanly, got %v", err)
	}

	return events
}

func TestCompleteClassifiesStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, streamBody, false))
	defer server.Close()

	events := collectEvents(t, remoteTestClient(server.URL))

	expected := []EventType{
		EventOutputAdded,      // reasoning
		EventTextChanged,      // "pondering"
		EventOutputAdded,      // message
		EventTextChanged,      // "The answer"
		EventTextChanged,      // " is 42."
		EventOutputAdded,      // tool calls
		EventToolCallAdded,    // call-1
		EventArgumentsChanged, // "1}"
	}

	if len(events) != len(expected) {
		t.Fatalf("Expected %d events, got %d: %+v", len(expected), len(events), events)
	}
	for i, eventType := range expected {
		if events[i].Type != eventType {
			t.Errorf("Event %d: expected %v, got %v", i, eventType, events[i].Type)
		}
	}

	if events[1].Delta != "pondering" {
		t.Errorf("Expected reasoning delta 'pondering', got %q", events[1].Delta)
	}
	if events[6].ID != tool.ID("call-1") {
		t.Errorf("Expected call id 'call-1', got %q", events[6].ID)
	}
}

func TestCompleteChunkingDoesNotChangeEvents(t *testing.T) {
	wholeServer := httptest.NewServer(streamHandler(t, streamBody, false))
	defer wholeServer.Close()
	bytewiseServer := httptest.NewServer(streamHandler(t, streamBody, true))
	defer bytewiseServer.Close()

	whole := collectEvents(t, remoteTestClient(wholeServer.URL))
	bytewise := collectEvents(t, remoteTestClient(bytewiseServer.URL))

	if len(whole) != len(bytewise) {
		t.Fatalf("Chunking changed event count: %d vs %d", len(whole), len(bytewise))
	}
	for i := range whole {
		if whole[i].Type != bytewise[i].Type || whole[i].Delta != bytewise[i].Delta {
			t.Errorf(
				"Event %d diverged: %v %q vs %v %q",
				i, whole[i].Type, whole[i].Delta, bytewise[i].Type, bytewise[i].Delta,
			)
		}
	}
}

func TestCompleteFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model melted", http.StatusInternalServerError)
	}))
	defer server.Close()

	completion := remoteTestClient(server.URL).Complete(context.Background(), []Message{User("hi")}, nil, nil)

	err := completion.Wait(context.Background())
	if err == nil {
		t.Fatal("Expected completion to fail")
	}
	if !IsKind(err, ErrorKindRequest) {
		t.Errorf("Expected a request error, got %v", err)
	}
}

func TestReplyOperationMatchesForwardedEvents(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, streamBody, false))
	defer server.Close()

	op := remoteTestClient(server.URL).Reply(context.Background(), []Message{User("hi")}, nil, nil)

	shadow := &Reply{}
	for event := range op.Events() {
		shadow.Update(event)
	}

	reply, err := op.Wait(context.Background())
	if err != nil {
		t.Fatalf("Expected reply to resolve, got %v", err)
	}

	if len(reply.Outputs) != 3 {
		t.Fatalf("Expected 3 outputs, got %d", len(reply.Outputs))
	}
	if len(shadow.Outputs) != len(reply.Outputs) {
		t.Fatalf(
			"Forwarded events folded to %d outputs, resolution has %d",
			len(shadow.Outputs), len(reply.Outputs),
		)
	}

	if text, _ := reply.Outputs[0].Text(); text != "pondering" {
		t.Errorf("Expected reasoning text 'pondering', got %q", text)
	}
	if text, _ := reply.Outputs[1].Text(); text != "The answer is 42." {
		t.Errorf("Expected answer text, got %q", text)
	}

	calls := reply.Outputs[2].ToolCalls
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].Arguments != "{\"a\":1}" {
		t.Errorf("Expected concatenated arguments, got %q", calls[0].Arguments)
	}
}
