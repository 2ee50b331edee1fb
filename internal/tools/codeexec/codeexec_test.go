package codeexec

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/EanHD/kai/internal/sandbox"
	"github.com/EanHD/kai/internal/tools"
)

// fakeRunner records the script instead of executing it.
type fakeRunner struct {
	lastCode string
	result   sandbox.Result
	err      error
}

func (f *fakeRunner) RunScript(_ context.Context, code string, _ time.Duration) (sandbox.Result, error) {
	f.lastCode = code
	return f.result, f.err
}

func packParams() map[string]any {
	return map[string]any{
		"language": "python",
		"mode":     "task",
		"task":     "battery_pack_energy",
		"variables": map[string]any{
			"series_cells":     13,
			"parallel_cells":   4,
			"cell_capacity_ah": 3.4,
			"cell_voltage_v":   3.6,
		},
	}
}

func TestExecuteTaskGeneratesPackScript(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{
		Stdout: "Energy: 636.48 Wh (0.636 kWh)\nRESULT_JSON:{\"pack_total_wh\": 636.48, \"pack_total_kwh\": 0.63648}\n",
	}}
	tool := New(runner, time.Second, true)

	res, err := tool.Execute(context.Background(), packParams())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != tools.StatusSuccess {
		t.Fatalf("status = %q", res.Status)
	}
	if !strings.Contains(runner.lastCode, "series_cells = 13") {
		t.Errorf("generated code missing variables:\n%s", runner.lastCode)
	}
	if wh, _ := res.Data["pack_total_wh"].(float64); wh != 636.48 {
		t.Errorf("pack_total_wh = %v", res.Data["pack_total_wh"])
	}
	if _, ok := res.Data["stdout"]; !ok {
		t.Error("stdout must be preserved in data")
	}
}

func TestExecuteRawCode(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "42\n"}}
	tool := New(runner, time.Second, true)

	res, err := tool.Execute(context.Background(), map[string]any{
		"language": "python",
		"mode":     "raw_code",
		"code":     "print(6*7)",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != tools.StatusSuccess || runner.lastCode != "print(6*7)" {
		t.Errorf("raw code not passed through: %+v", res)
	}
}

func TestExecuteRejectsBadParams(t *testing.T) {
	tool := New(&fakeRunner{}, time.Second, true)

	bad := []map[string]any{
		{"mode": "task", "task": "x"},                          // missing language
		{"language": "python"},                                 // missing mode
		{"language": "python", "mode": "interpretive_dance"},   // bad mode
		{"language": "python", "mode": "raw_code"},             // missing code
		{"language": "python", "mode": "task", "task": "nope"}, // unknown task
	}

	for _, params := range bad {
		if _, err := tool.Execute(context.Background(), params); err == nil {
			t.Errorf("params %v should be rejected", params)
		}
	}
}

func TestExecuteScriptFailure(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Code: 1, Stderr: "NameError"}}
	tool := New(runner, time.Second, true)

	res, err := tool.Execute(context.Background(), packParams())
	if err != nil {
		t.Fatalf("nonzero exit is a failed result, not an error: %v", err)
	}
	if res.Status != tools.StatusFailed {
		t.Errorf("status = %q, want failed", res.Status)
	}
}

func TestFallbackComputesNatively(t *testing.T) {
	tool := New(&fakeRunner{}, time.Second, true)

	res, err := tool.Fallback(context.Background(), packParams(), errors.New("docker down"))
	if err != nil {
		t.Fatalf("Fallback() error = %v", err)
	}
	if res.Status != tools.StatusSuccess {
		t.Fatalf("fallback status = %q", res.Status)
	}
	wh, _ := res.Data["pack_total_wh"].(float64)
	if math.Abs(wh-636.48) > 0.01 {
		t.Errorf("pack_total_wh = %v, want 636.48", wh)
	}
}

func TestDisabledShortCircuits(t *testing.T) {
	runner := &fakeRunner{}
	tool := New(runner, time.Second, false)

	res := tools.ExecuteWithFallback(context.Background(), tool, packParams())

	if res.Status != tools.StatusFailed || res.Error != "Tool disabled" {
		t.Errorf("disabled tool result = %+v", res)
	}
	if runner.lastCode != "" {
		t.Error("disabled tool must not run anything")
	}
}

func TestArithmeticTaskRejectsInjection(t *testing.T) {
	tool := New(&fakeRunner{}, time.Second, true)

	_, err := tool.Execute(context.Background(), map[string]any{
		"language":  "python",
		"mode":      "task",
		"task":      "arithmetic",
		"variables": map[string]any{"expression": "__import__('os').system('rm -rf /')"},
	})
	if err == nil {
		t.Fatal("expression with letters must be rejected")
	}
}
