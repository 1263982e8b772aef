// Command mcp is a read-eval-print loop demonstrating tool calling through a
// Model Context Protocol server. With -server it runs a tiny simulated
// weather MCP server over stdio; otherwise it boots an assistant, connects
// to an MCP server (a given URL, or the simulated one as a subprocess), and
// round-trips the assistant's tool calls through it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/icebreaker-llm/reason"
	"github.com/icebreaker-llm/reason/config"
	"github.com/icebreaker-llm/reason/logger"
	mcpglue "github.com/icebreaker-llm/reason/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverMode  = flag.Bool("server", false, "Run the simulated weather MCP server over stdio")
		backendName = flag.String("backend", "", "Backend to launch with: cpu, cuda, or rocm. Detected from -adapter when empty")
		adapter     = flag.String("adapter", "", "Graphics adapter description used to detect the backend")
	)
	flag.Parse()

	if *serverMode {
		return runWeatherServer()
	}

	model := flag.Arg(0)
	if model == "" {
		return fmt.Errorf("model argument not provided")
	}

	log, err := logger.Init()
	if err != nil {
		return err
	}

	ctx := context.Background()
	stdin := bufio.NewScanner(os.Stdin)

	fmt.Print("> URL of MCP server (blank to simulate one): ")
	stdin.Scan()
	address := strings.TrimSpace(stdin.Text())

	var session *mcpglue.Client
	if address == "" {
		executable, err := os.Executable()
		if err != nil {
			return err
		}
		session, err = mcpglue.NewStdio(log, executable, nil, "-server")
		if err != nil {
			return err
		}
	} else {
		session, err = mcpglue.NewHTTP(log, address)
		if err != nil {
			return err
		}
	}
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		return err
	}

	name, version := session.Server()
	fmt.Printf("\n- Connected to MCP server: %s (%s)\n", name, version)

	tools, err := session.Tools(ctx)
	if err != nil {
		return err
	}

	fmt.Println("- Available tools:")
	for _, t := range tools {
		fmt.Printf("    %s\n        %s\n", t.Function.Name, t.Function.Description)
	}

	backend, err := pickBackend(*backendName, *adapter)
	if err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	fmt.Printf("\n- Booting %s...\n", model)

	boot := reason.BootWith(ctx, model, backend, cfg, log)
	for event := range boot.Events() {
		if event.Type == reason.BootProgressed {
			fmt.Printf("- %s (%d%%)\n", event.Stage, event.Percent)
		}
	}

	client, err := boot.Wait(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Println()
	fmt.Println("-------------------")
	fmt.Println("Assistant is ready. Break the ice!")
	fmt.Println("-------------------")

	messages := []reason.Message{reason.System("You are a helpful assistant.")}
	processing := false

	for {
		if !processing {
			fmt.Print("\n> ")
			if !stdin.Scan() {
				return stdin.Err()
			}

			prompt := strings.TrimSpace(stdin.Text())
			if prompt == "" {
				return nil
			}

			messages = append(messages, reason.User(prompt))
		}

		op := client.Reply(ctx, messages, nil, tools)

		fmt.Println()
		for event := range op.Events() {
			if text, ok := event.Text(); ok {
				fmt.Print(text)
			}
		}
		fmt.Println()

		reply, err := op.Wait(ctx)
		if err != nil {
			return err
		}
		processing = false

		for _, output := range reply.Outputs {
			messages = append(messages, reason.Assistant(output))

			if output.Type != reason.OutputToolCalls {
				continue
			}

			for _, call := range output.ToolCalls {
				fmt.Printf("=> %s: %s\n", call.Name, call.Arguments)

				response, err := session.Call(ctx, call)
				if err != nil {
					return err
				}

				fmt.Printf("<= %s\n\n", response.Content)

				messages = append(messages, reason.ToolResult(response))
				processing = true
			}
		}
	}
}

func runWeatherServer() error {
	s := server.NewMCPServer("weather-station", "0.1.0")

	s.AddTool(
		mcp.NewTool("fetch_weather",
			mcp.WithDescription("Returns the weather for the provided location"),
			mcp.WithString("location",
				mcp.Required(),
				mcp.Description("The location to fetch the weather from"),
			),
		),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			location, err := request.RequireString("location")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("It is sunny in %s.", location)), nil
		},
	)

	return server.ServeStdio(s)
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
