// Package tools defines the uniform capability contract the executor
// invokes: execute, fallback, and schema-validated parameters.
package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Status of a tool execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one tool invocation. Data is empty only when
// the outcome is not success or the tool genuinely returned nothing.
type Result struct {
	StepID       string         `json:"step_id"`
	ToolName     string         `json:"tool_name"`
	Status       Status         `json:"status"`
	Data         map[string]any `json:"data"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"-"`
	FallbackUsed bool           `json:"fallback_used,omitempty"`
}

// ToMap renders the result in the wire shape passed to specialists and
// the presenter.
func (r Result) ToMap() map[string]any {
	return map[string]any{
		"status":            string(r.Status),
		"data":              r.Data,
		"error":             r.Error,
		"execution_time_ms": r.Duration.Milliseconds(),
	}
}

// Tool is an external capability behind a uniform contract. Execute may
// suspend on I/O; implementations must honor ctx cancellation. Tools
// validate their own parameter schema and ignore unknown parameters.
type Tool interface {
	Name() string
	Execute(ctx context.Context, params map[string]any) (Result, error)
	Fallback(ctx context.Context, params map[string]any, execErr error) (Result, error)
}

// Disabler is implemented by tools that can be switched off in config.
type Disabler interface {
	Enabled() bool
}

// ExecuteWithFallback runs the tool, invoking Fallback when Execute
// errors. A disabled tool short-circuits to a failed result. This is
// the only entry point the executor uses.
func ExecuteWithFallback(ctx context.Context, t Tool, params map[string]any) Result {
	if d, ok := t.(Disabler); ok && !d.Enabled() {
		return Result{
			ToolName: t.Name(),
			Status:   StatusFailed,
			Data:     map[string]any{},
			Error:    "Tool disabled",
		}
	}

	start := time.Now()
	result, err := t.Execute(ctx, params)
	if err == nil {
		result.ToolName = t.Name()
		result.Duration = time.Since(start)
		return result
	}

	log.Printf("[tools] %s primary execution failed: %v, trying fallback", t.Name(), err)

	result, fbErr := t.Fallback(ctx, params, err)
	result.ToolName = t.Name()
	result.Duration = time.Since(start)
	result.FallbackUsed = true
	if fbErr != nil {
		return Result{
			ToolName:     t.Name(),
			Status:       StatusFailed,
			Data:         map[string]any{},
			Error:        fmt.Sprintf("execute: %v; fallback: %v", err, fbErr),
			Duration:     time.Since(start),
			FallbackUsed: true,
		}
	}
	return result
}

// ValidateParams checks params against a JSON schema. Unknown
// parameters pass through; only declared constraints are enforced.
func ValidateParams(schemaJSON string, params map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid parameters: %v", msgs)
	}
	return nil
}

// Registry maps tool names to implementations. It is immutable after
// orchestrator construction.
type Registry map[string]Tool

// Names lists registered tool names.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
