// Package mcp bridges Model Context Protocol servers to the reason tool
// boundary: it lists a server's tools as tool.Tool declarations for a
// completion request, and dispatches the tool.Calls a reply produces back to
// the server, yielding tool.Responses.
//
// Tool execution is deliberately outside the reason core; this package is
// one possible executor.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/icebreaker-llm/reason/tool"
)

const clientName = "reason"

// Client is a connected MCP session usable as a tool source and executor.
type Client struct {
	client    *mcpclient.Client
	transport string // description for logs
	server    mcp.Implementation
	logger    zerolog.Logger
}

// NewStdio creates a client that launches an MCP server as a subprocess and
// speaks to it over stdio. The command string may carry leading arguments.
func NewStdio(logger zerolog.Logger, command string, env []string, args ...string) (*Client, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for a stdio MCP client")
	}

	parts := strings.Fields(command)
	cmdArgs := append(parts[1:], args...)

	underlying, err := mcpclient.NewStdioMCPClient(parts[0], env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	return &Client{
		client:    underlying,
		transport: command,
		logger:    logger.With().Str("component", "mcpClient").Logger(),
	}, nil
}

// NewHTTP creates a client speaking streamable HTTP to an MCP server.
func NewHTTP(logger zerolog.Logger, baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required for an HTTP MCP client")
	}

	underlying, err := mcpclient.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP MCP client: %w", err)
	}

	return &Client{
		client:    underlying,
		transport: baseURL,
		logger:    logger.With().Str("component", "mcpClient").Logger(),
	}, nil
}

// Start establishes the session and performs the protocol handshake.
func (c *Client) Start(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: "0.1.0",
			},
		},
	}

	result, err := c.client.Initialize(ctx, initReq)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	c.server = result.ServerInfo
	c.logger.Info().
		Str("transport", c.transport).
		Str("server", c.server.Name).
		Str("version", c.server.Version).
		Msg("MCP session established")

	return nil
}

// Server returns the connected server's advertised name and version.
func (c *Client) Server() (name, version string) {
	return c.server.Name, c.server.Version
}

// Tools lists the server's tools as declarations for a completion request.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	c.logger.Debug().
		Str("transport", c.transport).
		Int("tool_count", len(result.Tools)).
		Msg("Received tools from MCP server")

	tools := lo.Map(result.Tools, func(t mcp.Tool, _ int) tool.Tool {
		parameters := map[string]any{
			"type": t.InputSchema.Type,
		}
		if t.InputSchema.Properties != nil {
			parameters["properties"] = t.InputSchema.Properties
		}
		if len(t.InputSchema.Required) > 0 {
			parameters["required"] = t.InputSchema.Required
		}

		return tool.NewFunction(t.Name, t.Description, parameters)
	})

	return tools, nil
}

// Call dispatches one tool call to the server and flattens the result's text
// content into a tool.Response suitable for a tool message.
func (c *Client) Call(ctx context.Context, call tool.Call) (tool.Response, error) {
	arguments, err := call.ParseArguments()
	if err != nil {
		return tool.Response{}, fmt.Errorf("tool call %s has malformed arguments: %w", call.Name, err)
	}

	c.logger.Debug().
		Str("tool", call.Name).
		Str("call_id", string(call.ID)).
		Msg("Invoking tool on MCP server")

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      call.Name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return tool.Response{}, fmt.Errorf("failed to invoke tool %s: %w", call.Name, err)
	}

	return tool.Response{ID: call.ID, Content: flattenContent(result)}, nil
}

// Close shuts the session down.
func (c *Client) Close() error {
	return c.client.Close()
}

func flattenContent(result *mcp.CallToolResult) string {
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return string(data)
		}
	}

	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return strings.Join(texts, "")
}
