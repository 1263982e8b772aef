// Package tool defines the tool-calling vocabulary exchanged with the
// inference backend: tool declarations sent with a completion request, calls
// emitted by the model, and responses fed back by the caller.
//
// The package is a boundary type only. Executing a tool (dispatching a Call
// and producing a Response) is the caller's responsibility; see the mcp
// package for one such executor.
package tool

import "encoding/json"

// ID identifies a single tool call within a completion.
type ID string

// Tool declares a callable function to the model.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable function and its parameter schema.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewFunction builds a function-typed Tool declaration.
func NewFunction(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Call is a request from the model to invoke a declared function.
//
// Arguments accumulates as a raw text fragment stream during a completion and
// is only guaranteed to be valid JSON once the call is complete.
type Call struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the accumulated argument text of a completed call.
func (c Call) ParseArguments() (map[string]any, error) {
	var arguments map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &arguments); err != nil {
		return nil, err
	}
	return arguments, nil
}

// Response is the result of executing a Call, fed back to the model as a
// tool message. ID must match the originating Call.
type Response struct {
	ID      ID     `json:"id"`
	Content string `json:"content"`
}
