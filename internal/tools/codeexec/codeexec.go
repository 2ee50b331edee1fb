// Package codeexec implements the code_exec tool: python execution in
// a sandbox, with task templates for the calculations small local
// models get wrong when they attempt them mentally.
package codeexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EanHD/kai/internal/sandbox"
	"github.com/EanHD/kai/internal/tools"
)

const resultMarker = "RESULT_JSON:"

// ParamsSchema is the canonical code_exec input contract. The executor
// validates plans against the same shape before dispatch.
const ParamsSchema = `{
  "type": "object",
  "properties": {
    "language": {"type": "string", "enum": ["python"]},
    "mode": {"type": "string", "enum": ["task", "raw_code"]},
    "task": {"type": "string"},
    "variables": {"type": "object"},
    "code": {"type": "string"}
  },
  "required": ["language", "mode"]
}`

// Tool executes python in the sandbox.
type Tool struct {
	runner  sandbox.Runner
	timeout time.Duration
	enabled bool
}

// New creates the code_exec tool over the given sandbox runner.
func New(runner sandbox.Runner, timeout time.Duration, enabled bool) *Tool {
	return &Tool{runner: runner, timeout: timeout, enabled: enabled}
}

// Name implements tools.Tool.
func (t *Tool) Name() string { return "code_exec" }

// Enabled implements tools.Disabler.
func (t *Tool) Enabled() bool { return t.enabled }

// Execute implements tools.Tool. Params follow ParamsSchema: mode=task
// synthesizes python from a task template; mode=raw_code runs the given
// source verbatim.
func (t *Tool) Execute(ctx context.Context, params map[string]any) (tools.Result, error) {
	if err := tools.ValidateParams(ParamsSchema, params); err != nil {
		return tools.Result{}, err
	}

	code, err := t.resolveCode(params)
	if err != nil {
		return tools.Result{}, err
	}

	res, err := t.runner.RunScript(ctx, code, t.timeout)
	if err != nil {
		return tools.Result{}, err
	}
	if res.Code != 0 {
		return tools.Result{
			Status: tools.StatusFailed,
			Data:   map[string]any{"stdout": res.Stdout, "stderr": res.Stderr},
			Error:  fmt.Sprintf("script exited with code %d", res.Code),
		}, nil
	}

	data := map[string]any{"stdout": res.Stdout}
	for k, v := range extractResult(res.Stdout) {
		data[k] = v
	}

	return tools.Result{Status: tools.StatusSuccess, Data: data}, nil
}

// Fallback implements tools.Tool. When the sandbox is unavailable, the
// battery task template is evaluated natively so the pipeline still
// produces grounded numbers.
func (t *Tool) Fallback(_ context.Context, params map[string]any, execErr error) (tools.Result, error) {
	mode, _ := params["mode"].(string)
	task, _ := params["task"].(string)
	if mode != "task" || task != taskPackEnergy {
		return tools.Result{
			Status: tools.StatusFailed,
			Data:   map[string]any{},
			Error:  fmt.Sprintf("code execution unavailable: %v", execErr),
		}, nil
	}

	vars, _ := params["variables"].(map[string]any)
	calc, err := packEnergyNative(vars)
	if err != nil {
		return tools.Result{
			Status: tools.StatusFailed,
			Data:   map[string]any{},
			Error:  fmt.Sprintf("code execution unavailable and native fallback failed: %v", err),
		}, nil
	}

	return tools.Result{Status: tools.StatusSuccess, Data: calc}, nil
}

// resolveCode turns the validated params into python source.
func (t *Tool) resolveCode(params map[string]any) (string, error) {
	mode, _ := params["mode"].(string)

	switch mode {
	case "raw_code":
		code, _ := params["code"].(string)
		if strings.TrimSpace(code) == "" {
			return "", fmt.Errorf("mode='raw_code' requires 'code' parameter")
		}
		return code, nil

	case "task":
		task, _ := params["task"].(string)
		if task == "" {
			return "", fmt.Errorf("mode='task' requires 'task' parameter")
		}
		vars, _ := params["variables"].(map[string]any)
		return generateTaskCode(task, vars)

	default:
		return "", fmt.Errorf("mode must be 'task' or 'raw_code', got '%s'", mode)
	}
}

// extractResult pulls the structured result line out of script stdout.
func extractResult(stdout string) map[string]any {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, resultMarker) {
			continue
		}
		var result map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, resultMarker)), &result); err == nil {
			return result
		}
	}
	return nil
}
