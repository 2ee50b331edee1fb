package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/EanHD/kai/internal/cost"
	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/plan"
	"github.com/EanHD/kai/internal/prompts"
	"github.com/EanHD/kai/internal/sanity"
	"github.com/EanHD/kai/internal/specialist"
	"github.com/EanHD/kai/internal/tools"
)

// recordingTool remembers invocation order and inputs.
type recordingTool struct {
	name    string
	calls   *[]string
	inputs  map[string]any
	result  tools.Result
	execErr error
}

func (t *recordingTool) Name() string { return t.name }

func (t *recordingTool) Execute(_ context.Context, params map[string]any) (tools.Result, error) {
	*t.calls = append(*t.calls, t.name)
	t.inputs = params
	if t.execErr != nil {
		return tools.Result{}, t.execErr
	}
	if t.result.Data == nil {
		return tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"stdout": "ok"}}, nil
	}
	return t.result, nil
}

func (t *recordingTool) Fallback(_ context.Context, _ map[string]any, execErr error) (tools.Result, error) {
	return tools.Result{Status: tools.StatusFailed, Data: map[string]any{}, Error: execErr.Error()}, nil
}

// fakeSpecialistConnector lets escalation paths run without a network.
type fakeSpecialistConnector struct {
	content string
	calls   int
}

func (f *fakeSpecialistConnector) Generate(_ context.Context, _ []llm.Message, _ llm.Options) (llm.Response, error) {
	f.calls++
	return llm.Response{Content: f.content, ModelUsed: "fake", FinishReason: "stop"}, nil
}

func (f *fakeSpecialistConnector) Stream(_ context.Context, _ []llm.Message, _ llm.Options) (<-chan string, <-chan error) {
	ch := make(chan string)
	errCh := make(chan error, 1)
	close(ch)
	close(errCh)
	return ch, errCh
}

func (f *fakeSpecialistConnector) Health(_ context.Context) bool { return true }
func (f *fakeSpecialistConnector) ModelID() string               { return "fake" }
func (f *fakeSpecialistConnector) EstimateCost(_, _ int) float64 { return 0.01 }

func newExecutor(reg tools.Registry, fast, strong llm.Connector, tracker *cost.Tracker) *Executor {
	verifier := specialist.NewVerifier(fast, strong, prompts.NewRegistry(), tracker)
	return New(reg, sanity.NewDefaultChecker(), verifier)
}

func basePlan(steps ...plan.Step) *plan.Plan {
	return &plan.Plan{
		PlanID:      "p1",
		UserQuery:   "test query",
		SafetyLevel: plan.SafetyNormal,
		Steps:       steps,
	}
}

func TestExecuteRespectsDependencyOrder(t *testing.T) {
	var calls []string
	reg := tools.Registry{
		"alpha": &recordingTool{name: "alpha", calls: &calls},
		"beta":  &recordingTool{name: "beta", calls: &calls},
		"gamma": &recordingTool{name: "gamma", calls: &calls},
	}
	ex := newExecutor(reg, nil, nil, nil)

	// Declared out of order: gamma depends on beta depends on alpha
	p := basePlan(
		plan.Step{ID: "s3", Type: plan.StepToolCall, Tool: "gamma", DependsOn: []string{"s2"}},
		plan.Step{ID: "s2", Type: plan.StepToolCall, Tool: "beta", DependsOn: []string{"s1"}},
		plan.Step{ID: "s1", Type: plan.StepToolCall, Tool: "alpha"},
	)

	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"alpha", "beta", "gamma"}
	if len(calls) != 3 {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call order = %v, want %v", calls, want)
		}
	}
	if len(out.ToolResults) != 3 {
		t.Errorf("got %d tool results", len(out.ToolResults))
	}
}

func TestExecuteCircularPlan(t *testing.T) {
	var calls []string
	reg := tools.Registry{"alpha": &recordingTool{name: "alpha", calls: &calls}}
	ex := newExecutor(reg, nil, nil, nil)

	p := basePlan(
		plan.Step{ID: "a", Type: plan.StepToolCall, Tool: "alpha", DependsOn: []string{"b"}},
		plan.Step{ID: "b", Type: plan.StepToolCall, Tool: "alpha", DependsOn: []string{"a"}},
	)

	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(calls) != 0 {
		t.Error("circular plan must execute zero steps")
	}
	ve, ok := out.ToolResults["validation_error"]
	if !ok || ve["status"] != string(tools.StatusFailed) {
		t.Errorf("missing synthetic validation_error: %v", out.ToolResults)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		steps []plan.Step
	}{
		{
			name: "unknown reference",
			steps: []plan.Step{
				{ID: "a", Type: plan.StepToolCall, Tool: "x", DependsOn: []string{"ghost"}},
			},
		},
		{
			name: "duplicate ids",
			steps: []plan.Step{
				{ID: "a", Type: plan.StepToolCall, Tool: "x"},
				{ID: "a", Type: plan.StepToolCall, Tool: "y"},
			},
		},
		{
			name: "self dependency",
			steps: []plan.Step{
				{ID: "a", Type: plan.StepToolCall, Tool: "x", DependsOn: []string{"a"}},
			},
		},
		{
			name: "code_exec missing mode",
			steps: []plan.Step{
				{ID: "a", Type: plan.StepToolCall, Tool: "code_exec",
					Input: map[string]any{"language": "python"}},
			},
		},
		{
			name: "code_exec task without task field",
			steps: []plan.Step{
				{ID: "a", Type: plan.StepToolCall, Tool: "code_exec",
					Input: map[string]any{"language": "python", "mode": "task"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePlan(tt.steps...)
			err := Validate(p)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			// P7: validation is idempotent
			err2 := Validate(p)
			if (err == nil) != (err2 == nil) || err.Error() != err2.Error() {
				t.Errorf("validation not idempotent: %v vs %v", err, err2)
			}
		})
	}
}

func TestMissingToolHandling(t *testing.T) {
	ex := newExecutor(tools.Registry{}, nil, nil, nil)

	p := basePlan(
		plan.Step{ID: "req", Type: plan.StepToolCall, Tool: "nope", Required: true},
		plan.Step{ID: "opt", Type: plan.StepToolCall, Tool: "nope", Required: true, CanSkipIfUnavailable: true},
	)

	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if out.ToolResults["req"]["status"] != string(tools.StatusFailed) {
		t.Errorf("required missing tool: %v", out.ToolResults["req"])
	}
	if out.ToolResults["opt"]["status"] != string(tools.StatusSkipped) {
		t.Errorf("skippable missing tool: %v", out.ToolResults["opt"])
	}
}

func TestToolRuntimeErrorContinuesExecution(t *testing.T) {
	var calls []string
	reg := tools.Registry{
		"boom": &recordingTool{name: "boom", calls: &calls, execErr: errors.New("kaput")},
		"next": &recordingTool{name: "next", calls: &calls},
	}
	ex := newExecutor(reg, nil, nil, nil)

	p := basePlan(
		plan.Step{ID: "s1", Type: plan.StepToolCall, Tool: "boom"},
		plan.Step{ID: "s2", Type: plan.StepToolCall, Tool: "next"},
	)

	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.ToolResults["s1"]["status"] != string(tools.StatusFailed) {
		t.Errorf("failing tool result: %v", out.ToolResults["s1"])
	}
	if out.ToolResults["s2"]["status"] != string(tools.StatusSuccess) {
		t.Errorf("execution must continue after a tool failure: %v", out.ToolResults["s2"])
	}
}

func TestReferenceResolution(t *testing.T) {
	var calls []string
	producer := &recordingTool{
		name: "producer", calls: &calls,
		result: tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"stdout": "636.48"}},
	}
	consumer := &recordingTool{name: "consumer", calls: &calls}
	reg := tools.Registry{"producer": producer, "consumer": consumer}
	ex := newExecutor(reg, nil, nil, nil)

	p := basePlan(
		plan.Step{ID: "s1", Type: plan.StepToolCall, Tool: "producer"},
		plan.Step{ID: "s2", Type: plan.StepToolCall, Tool: "consumer", DependsOn: []string{"s1"},
			Input: map[string]any{"x": "FROM_s1", "y": "FROM_s999", "z": "plain"}},
	)

	if _, err := ex.Execute(context.Background(), p, "q1", "sess"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// P8: resolved reference carries the producer's data
	data, ok := consumer.inputs["x"].(map[string]any)
	if !ok || data["stdout"] != "636.48" {
		t.Errorf("x = %v, want producer data", consumer.inputs["x"])
	}
	// P8: dangling reference passes through as the literal string
	if consumer.inputs["y"] != "FROM_s999" {
		t.Errorf("y = %v, want literal FROM_s999", consumer.inputs["y"])
	}
	if consumer.inputs["z"] != "plain" {
		t.Errorf("z = %v", consumer.inputs["z"])
	}
}

func TestSanityEscalationUsesStrong(t *testing.T) {
	var calls []string
	liar := &recordingTool{
		name: "liar", calls: &calls,
		result: tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"stdout": "The 21700 cell has 25Ah capacity."}},
	}
	reg := tools.Registry{"liar": liar}

	fast := &fakeSpecialistConnector{content: `{"issues": []}`}
	strong := &fakeSpecialistConnector{content: `{"issues": [{"field": "capacity", "problem": "impossible", "severity": "error"}]}`}
	ex := newExecutor(reg, fast, strong, nil)

	p := basePlan(
		plan.Step{ID: "s1", Type: plan.StepToolCall, Tool: "liar"},
		plan.Step{ID: "check", Type: plan.StepSanityCheck, DependsOn: []string{"s1"},
			Input: map[string]any{"context_step_ids": []any{"s1"}}},
	)
	p.UserQuery = "What's the capacity of Samsung 50E 21700?"

	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if strong.calls != 1 || fast.calls != 0 {
		t.Errorf("high severity must route to strong (strong=%d fast=%d)", strong.calls, fast.calls)
	}
	if _, ok := out.SpecialistResults[VerificationKey]; !ok {
		t.Error("verification result missing")
	}
	if out.ToolResults["check"]["suspicious"] != true {
		t.Errorf("sanity result not persisted: %v", out.ToolResults["check"])
	}
}

func TestModelCallRoutesBySafety(t *testing.T) {
	fast := &fakeSpecialistConnector{content: `{"issues": []}`}
	strong := &fakeSpecialistConnector{content: `{"issues": []}`}
	ex := newExecutor(tools.Registry{}, fast, strong, nil)

	p := basePlan(plan.Step{ID: "m1", Type: plan.StepModelCall, Model: "external_reasoner_fast"})
	if _, err := ex.Execute(context.Background(), p, "q1", "sess"); err != nil {
		t.Fatal(err)
	}
	if fast.calls != 1 || strong.calls != 0 {
		t.Errorf("normal safety must use fast (fast=%d strong=%d)", fast.calls, strong.calls)
	}

	p2 := basePlan(plan.Step{ID: "m1", Type: plan.StepModelCall, Model: "external_reasoner_strong"})
	p2.SafetyLevel = plan.SafetyHigh
	if _, err := ex.Execute(context.Background(), p2, "q2", "sess"); err != nil {
		t.Fatal(err)
	}
	if strong.calls != 1 {
		t.Errorf("high safety must use strong (strong=%d)", strong.calls)
	}
}

func TestCancellation(t *testing.T) {
	var calls []string
	reg := tools.Registry{"alpha": &recordingTool{name: "alpha", calls: &calls}}
	ex := newExecutor(reg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := basePlan(plan.Step{ID: "s1", Type: plan.StepToolCall, Tool: "alpha"})
	if _, err := ex.Execute(ctx, p, "q1", "sess"); err == nil {
		t.Error("cancelled context must surface an error")
	}
	if len(calls) != 0 {
		t.Error("no step may run after cancellation")
	}
}

func TestFinalizationStepSkipped(t *testing.T) {
	ex := newExecutor(tools.Registry{}, nil, nil, nil)

	p := basePlan(plan.Step{ID: "finalize", Type: plan.StepFinalization})
	out, err := ex.Execute(context.Background(), p, "q1", "sess")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.ToolResults) != 0 || len(out.SpecialistResults) != 0 {
		t.Errorf("finalization must produce nothing: %+v", out)
	}
}
