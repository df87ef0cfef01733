// Package tools defines the tool abstraction the assistant invokes on
// the user's behalf, and the registry that holds the executors.
//
// Each capability (calculator, code runner, file operations, the
// LLM-delegating text tools) lives in a subpackage and exports a
// constructor returning a *Tool for registration.
package tools

import "context"

// Property describes a single parameter for documentation and help
// output.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// ToolSchema declares a tool's parameters.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered capability.
type Tool struct {
	// Name is the unique registry key.
	Name string

	// Description explains what the tool does, shown in help output.
	Description string

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema declares the expected arguments.
	Schema ToolSchema
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult wraps one execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool ran.
	ToolName string

	// Result is the tool's string output.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess reports whether the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}

// StringArg extracts a string argument, tolerating absence.
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
