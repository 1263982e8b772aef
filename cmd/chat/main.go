// Command chat is a minimal read-eval-print loop against a booted assistant.
//
//	chat [flags] <model.gguf>
//	chat -remote http://host:8080 <model-name>
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/icebreaker-llm/reason"
	"github.com/icebreaker-llm/reason/config"
	"github.com/icebreaker-llm/reason/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		backendName = flag.String("backend", "", "Backend to launch with: cpu, cuda, or rocm. Detected from -adapter when empty")
		adapter     = flag.String("adapter", "", "Graphics adapter description used to detect the backend")
		remote      = flag.String("remote", "", "Attach to a running server at this URL instead of launching one")
		system      = flag.String("system", "You are a helpful assistant.", "System prompt")
	)
	flag.Parse()

	model := flag.Arg(0)
	if model == "" {
		return fmt.Errorf("model argument not provided")
	}

	log, err := logger.Init()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var client *reason.Reason
	if *remote != "" {
		client, err = reason.ConnectWith(ctx, *remote, model, log)
		if err != nil {
			return err
		}
	} else {
		backend, err := pickBackend(*backendName, *adapter)
		if err != nil {
			return err
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}

		boot := reason.BootWith(ctx, model, backend, cfg, log)
		for event := range boot.Events() {
			switch event.Type {
			case reason.BootProgressed:
				fmt.Printf("%s (%d%%)\n", event.Stage, event.Percent)
			case reason.BootLogged:
				fmt.Println(event.Log)
			}
		}

		client, err = boot.Wait(ctx)
		if err != nil {
			return err
		}
	}
	defer client.Close()

	fmt.Println("-------------------")
	fmt.Println("Assistant is ready. Break the ice!")
	fmt.Println("-------------------")

	messages := []reason.Message{reason.System(*system)}
	stdin := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !stdin.Scan() {
			return stdin.Err()
		}

		prompt := strings.TrimSpace(stdin.Text())
		if prompt == "" {
			return nil
		}

		messages = append(messages, reason.User(prompt))

		op := client.Reply(ctx, messages, nil, nil)

		fmt.Println()
		for event := range op.Events() {
			if text, ok := event.Text(); ok {
				fmt.Print(text)
			}
		}

		reply, err := op.Wait(ctx)
		if err != nil {
			return err
		}

		for _, output := range reply.Outputs {
			messages = append(messages, reason.Assistant(output))
		}

		fmt.Println()
	}
}

func pickBackend(name, adapter string) (reason.Backend, error) {
	switch strings.ToLower(name) {
	case "":
		return reason.Detect(adapter), nil
	case "cpu":
		return reason.BackendCPU, nil
	case "cuda":
		return reason.BackendCUDA, nil
	case "rocm":
		return reason.BackendROCm, nil
	default:
		return "", fmt.Errorf("unknown backend %q", name)
	}
}
