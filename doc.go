// Package reason boots a local large-language-model inference backend and
// drives a streaming chat-completion protocol against it.
//
// # Booting
//
// Boot finds an executor for a model file and resolves to a client handle
// once the backend reports healthy. A local llama-server binary is tried
// first, then a container runtime; if neither is available the boot fails.
// While the executor launches, the operation emits progress stages and the
// executor's own log lines:
//
//	boot := reason.Boot(ctx, "models/llama.gguf", reason.Detect(adapter))
//
//	for event := range boot.Events() {
//	    switch event.Type {
//	    case reason.BootProgressed:
//	        fmt.Printf("%s (%d%%)\n", event.Stage, event.Percent)
//	    case reason.BootLogged:
//	        fmt.Println(event.Log)
//	    }
//	}
//
//	client, err := boot.Wait(ctx)
//
// Connect attaches to an already-running server instead of launching one.
//
// # Completions
//
// Reply streams one assistant turn, classifying the raw delta stream into
// reasoning text, answer text, and tool-call construction, and accumulates
// the events into a structured Reply:
//
//	op := client.Reply(ctx, messages, nil, tools)
//
//	for event := range op.Events() {
//	    if text, ok := event.Text(); ok {
//	        fmt.Print(text)
//	    }
//	}
//
//	reply, err := op.Wait(ctx)
//
// Tool calls in the reply are dispatched by the caller (see the mcp
// package); results are appended as tool messages before the next turn.
package reason
