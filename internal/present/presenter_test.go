package present

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/prompts"
)

type fakeConnector struct {
	content      string
	err          error
	streamChunks []string
	streamErr    error
	lastUser     string
}

func (f *fakeConnector) Generate(_ context.Context, messages []llm.Message, _ llm.Options) (llm.Response, error) {
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			f.lastUser = m.Content
		}
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.content, ModelUsed: "fake-local", FinishReason: "stop"}, nil
}

func (f *fakeConnector) Stream(_ context.Context, _ []llm.Message, _ llm.Options) (<-chan string, <-chan error) {
	ch := make(chan string, len(f.streamChunks))
	errCh := make(chan error, 1)
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	if f.streamErr != nil {
		errCh <- f.streamErr
	}
	close(errCh)
	return ch, errCh
}

func (f *fakeConnector) Health(_ context.Context) bool { return true }
func (f *fakeConnector) ModelID() string               { return "fake-local" }
func (f *fakeConnector) EstimateCost(_, _ int) float64 { return 0 }

func newPresenter(c llm.Connector) *Presenter {
	return NewPresenter(c, prompts.NewRegistry())
}

func calcInput() Input {
	return Input{
		OriginalQuery: "13S4P with 3400mAh cells at 3.6V, total kWh?",
		Plan:          map[string]any{"plan_id": "p1"},
		ToolResults: map[string]map[string]any{
			"calc": {
				"status": "success",
				"data": map[string]any{
					"stdout":         "Energy: 636.48 Wh (0.636 kWh)",
					"pack_total_wh":  636.48,
					"pack_total_kwh": 0.63648,
				},
			},
		},
		SpecialistResults: map[string]map[string]any{},
	}
}

func TestFinalizeParsesOutput(t *testing.T) {
	conn := &fakeConnector{content: `{"final_answer": "Your pack stores 0.636 kWh (636.48 Wh).", "short_summary": "About 0.64 kWh.", "citations_used": [1]}`}
	p := newPresenter(conn)

	out := p.Finalize(context.Background(), calcInput())

	if !strings.Contains(out.FinalAnswer, "0.636") {
		t.Errorf("final answer = %q", out.FinalAnswer)
	}
	if len(out.CitationsUsed) != 1 || out.CitationsUsed[0] != 1 {
		t.Errorf("citations = %v", out.CitationsUsed)
	}
	if out.DebugInfo == nil {
		t.Error("debug info must be populated")
	}
}

func TestFinalizeFallbackOnParseFailure(t *testing.T) {
	conn := &fakeConnector{content: "So, about that battery..."}
	p := newPresenter(conn)

	out := p.Finalize(context.Background(), calcInput())

	if out.FinalAnswer == "" {
		t.Fatal("fallback must not return an empty answer")
	}
	if !strings.Contains(out.FinalAnswer, "636.48") {
		t.Errorf("fallback should surface tool stdout: %q", out.FinalAnswer)
	}
	if out.DebugInfo["fallback"] != true {
		t.Error("fallback must be flagged in debug info")
	}
}

func TestFinalizeFallbackApology(t *testing.T) {
	conn := &fakeConnector{err: errors.New("model offline")}
	p := newPresenter(conn)

	out := p.Finalize(context.Background(), Input{
		OriginalQuery:     "hey",
		Plan:              map[string]any{},
		ToolResults:       map[string]map[string]any{},
		SpecialistResults: map[string]map[string]any{},
	})

	if out.FinalAnswer == "" {
		t.Fatal("P6: final answer must never be empty")
	}
	if !strings.Contains(out.FinalAnswer, "issue processing") {
		t.Errorf("expected apology, got %q", out.FinalAnswer)
	}
}

func TestFallbackSurfacesSpecialistErrors(t *testing.T) {
	conn := &fakeConnector{content: "{broken"}
	p := newPresenter(conn)

	in := calcInput()
	in.SpecialistResults["verification"] = map[string]any{
		"error": map[string]any{
			"type":    "no_connector",
			"message": "External model not configured",
		},
	}

	out := p.Finalize(context.Background(), in)

	if !strings.Contains(out.FinalAnswer, "External model not configured") {
		t.Errorf("specialist error not surfaced: %q", out.FinalAnswer)
	}
}

func TestBuildCitationMap(t *testing.T) {
	toolResults := map[string]map[string]any{
		"search": {
			"status": "success",
			"data": map[string]any{
				"citations": []any{
					map[string]any{"title": "Datasheet", "url": "https://example.com/ds"},
					map[string]any{"title": "Review", "url": "https://example.com/rev"},
				},
			},
		},
		"failed_search": {
			"status": "failed",
			"data": map[string]any{
				"citations": []any{map[string]any{"title": "Nope", "url": "x"}},
			},
		},
	}
	specialistResults := map[string]map[string]any{
		"verification": {
			"verified_specs": map[string]any{
				"sources": []any{
					map[string]any{"label": "Official spec", "url": "https://example.com/official"},
				},
			},
		},
	}

	citations := buildCitationMap(toolResults, specialistResults)

	if len(citations) != 3 {
		t.Fatalf("got %d citations, want 3", len(citations))
	}
	for i, c := range citations {
		if c["id"] != i+1 {
			t.Errorf("citation %d has id %v", i, c["id"])
		}
	}
	if citations[2]["label"] != "Official spec" {
		t.Errorf("specialist source must come last: %v", citations[2])
	}
}

func TestFinalizeStream(t *testing.T) {
	conn := &fakeConnector{streamChunks: []string{"Your pack ", "stores 0.636 kWh."}}
	p := newPresenter(conn)

	var got strings.Builder
	for chunk := range p.FinalizeStream(context.Background(), calcInput()) {
		got.WriteString(chunk)
	}

	if got.String() != "Your pack stores 0.636 kWh." {
		t.Errorf("streamed = %q", got.String())
	}
}

func TestFinalizeStreamFallsBack(t *testing.T) {
	conn := &fakeConnector{
		streamErr: errors.New("stream broken"),
		content:   `{"final_answer": "Assembled from tools: 636.48 Wh.", "short_summary": "s"}`,
	}
	p := newPresenter(conn)

	var got strings.Builder
	for chunk := range p.FinalizeStream(context.Background(), calcInput()) {
		got.WriteString(chunk)
	}

	if got.String() == "" {
		t.Fatal("stream fallback must still produce prose")
	}
}

// P5 approximation: every numeric token in the fallback answer appears
// in the combined inputs.
func TestFallbackGroundedness(t *testing.T) {
	conn := &fakeConnector{content: "not json"}
	p := newPresenter(conn)

	in := calcInput()
	out := p.Finalize(context.Background(), in)

	numbers := regexp.MustCompile(`\d+(?:\.\d+)?`).FindAllString(out.FinalAnswer, -1)
	combined := in.OriginalQuery
	for _, r := range in.ToolResults {
		combined += " " + strings.TrimSpace(strings.Join(collectStrings(r), " "))
	}

	for _, n := range numbers {
		if !strings.Contains(combined, n) {
			t.Errorf("number %q in answer but not in inputs", n)
		}
	}
}

func collectStrings(m map[string]any) []string {
	var out []string
	for _, v := range m {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			out = append(out, collectStrings(t)...)
		}
	}
	return out
}
