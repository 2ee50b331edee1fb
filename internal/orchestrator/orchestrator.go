// Package orchestrator ties the plan-execute-present pipeline together
// and owns the process-wide cost tracker and registries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/EanHD/kai/internal/cost"
	"github.com/EanHD/kai/internal/executor"
	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/memory"
	"github.com/EanHD/kai/internal/plan"
	"github.com/EanHD/kai/internal/present"
	"github.com/EanHD/kai/internal/prompts"
	"github.com/EanHD/kai/internal/sanity"
	"github.com/EanHD/kai/internal/session"
	"github.com/EanHD/kai/internal/specialist"
	"github.com/EanHD/kai/internal/tools"
)

// ErrCancelled is the sentinel surfaced when a query's context is
// cancelled before finalization.
var ErrCancelled = errors.New("query cancelled")

// Source tags for incoming queries. Informational only; routing never
// depends on them.
const (
	SourceCLI = "cli"
	SourceAPI = "api"
)

// Options configures an orchestrator instance. Multiple orchestrators
// may coexist in one process (tests, embedders); nothing here is
// global.
type Options struct {
	Local           llm.Connector // required
	Fast            llm.Connector // optional fast specialist
	Strong          llm.Connector // optional strong specialist
	Tools           tools.Registry
	SanityRules     []sanity.Rule // nil = DefaultRules
	CostLimit       float64
	SoftCapFraction float64
	Memory          *memory.Store // optional vault + cost journal
	ContextTurns    int           // session turns shown to the analyzer
}

// Orchestrator owns the per-process pipeline components.
type Orchestrator struct {
	local     llm.Connector
	fast      llm.Connector
	strong    llm.Connector
	tools     tools.Registry
	tracker   *cost.Tracker
	analyzer  *plan.Analyzer
	executor  *executor.Executor
	presenter *present.Presenter
	vault     *memory.Store
	turns     int
}

// New wires the pipeline. Connector and tool registries are immutable
// afterwards.
func New(opts Options) (*Orchestrator, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("local connector is required")
	}
	if opts.CostLimit <= 0 {
		opts.CostLimit = 1.0
	}
	if opts.SoftCapFraction <= 0 || opts.SoftCapFraction >= 1 {
		opts.SoftCapFraction = 0.8
	}
	if opts.Tools == nil {
		opts.Tools = tools.Registry{}
	}
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 6
	}

	tracker := cost.NewTracker(opts.CostLimit, opts.SoftCapFraction)
	if opts.Memory != nil {
		tracker.SetJournal(opts.Memory)
	}

	registry := prompts.NewRegistry()

	rules := opts.SanityRules
	if rules == nil {
		rules = sanity.DefaultRules()
	}
	checker := sanity.NewChecker(rules)

	verifier := specialist.NewVerifier(opts.Fast, opts.Strong, registry, tracker)

	return &Orchestrator{
		local:     opts.Local,
		fast:      opts.Fast,
		strong:    opts.Strong,
		tools:     opts.Tools,
		tracker:   tracker,
		analyzer:  plan.NewAnalyzer(opts.Local, registry),
		executor:  executor.New(opts.Tools, checker, verifier),
		presenter: present.NewPresenter(opts.Local, registry),
		vault:     opts.Memory,
		turns:     opts.ContextTurns,
	}, nil
}

// ProcessQuery runs the full pipeline and returns the finalization.
// The only error it returns is cancellation; every other failure mode
// degrades into a FinalizationOutput with a non-empty answer.
func (o *Orchestrator) ProcessQuery(ctx context.Context, queryText string, sess *session.Session, source string) (out present.FinalizationOutput, err error) {
	queryID := uuid.NewString()
	start := time.Now()

	// A panic escaping the pipeline is a bug; degrade to an apology
	// with the error tagged in debug info rather than crashing the host.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[orchestrator] panic during query %s: %v", queryID, r)
			out = present.FinalizationOutput{
				FinalAnswer:   "I encountered an issue processing your request. Please try rephrasing your question or try again later.",
				ShortSummary:  "Internal error.",
				CitationsUsed: []int{},
				DebugInfo:     map[string]any{"error": fmt.Sprint(r), "query_id": queryID},
			}
			err = nil
		}
	}()

	p, outcome, cancelErr := o.analyzeAndExecute(ctx, queryText, sess, source, queryID)
	if cancelErr != nil {
		return present.FinalizationOutput{}, cancelErr
	}

	final := o.presenter.Finalize(ctx, present.Input{
		OriginalQuery:     queryText,
		Plan:              p.ToMap(),
		ToolResults:       outcome.ToolResults,
		SpecialistResults: outcome.SpecialistResults,
	})

	o.finishQuery(ctx, sess, queryText, final.FinalAnswer, p, final.DebugInfo, start)
	return final, nil
}

// ProcessQueryStream runs tool and specialist work eagerly, then
// streams the finalization prose. The channel closes when the answer
// is complete or the context is cancelled.
func (o *Orchestrator) ProcessQueryStream(ctx context.Context, queryText string, sess *session.Session, source string) (<-chan string, error) {
	queryID := uuid.NewString()
	start := time.Now()

	p, outcome, cancelErr := o.analyzeAndExecute(ctx, queryText, sess, source, queryID)
	if cancelErr != nil {
		return nil, cancelErr
	}

	inner := o.presenter.FinalizeStream(ctx, present.Input{
		OriginalQuery:     queryText,
		Plan:              p.ToMap(),
		ToolResults:       outcome.ToolResults,
		SpecialistResults: outcome.SpecialistResults,
	})

	out := make(chan string)
	go func() {
		defer close(out)
		var full string
		for chunk := range inner {
			full += chunk
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		o.finishQuery(ctx, sess, queryText, full, p, map[string]any{"streamed": true}, start)
	}()

	return out, nil
}

// analyzeAndExecute is the shared front half of both entry points.
func (o *Orchestrator) analyzeAndExecute(ctx context.Context, queryText string, sess *session.Session, source, queryID string) (*plan.Plan, executor.Outcome, error) {
	var sessionContext []llm.Message
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID
		sessionContext = sess.RecentContext(o.turns)
	}

	p := o.analyzer.Analyze(ctx, queryText, source, sessionContext)
	log.Printf("[orchestrator] plan %s: intent=%q complexity=%s steps=%d", p.PlanID, p.Intent, p.Complexity, len(p.Steps))

	outcome, err := o.executor.Execute(ctx, p, queryID, sessionID)
	if err != nil {
		// Cancellation is the executor's only error
		return nil, executor.Outcome{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return p, outcome, nil
}

// finishQuery records the exchange and logs completion.
func (o *Orchestrator) finishQuery(ctx context.Context, sess *session.Session, query, answer string, p *plan.Plan, debug map[string]any, start time.Time) {
	if sess != nil {
		sess.Append(llm.RoleUser, query)
		sess.Append(llm.RoleAssistant, answer)

		if o.vault != nil {
			if err := o.vault.Remember(ctx, sess.ID, "user", query); err != nil {
				log.Printf("[orchestrator] vault write failed: %v", err)
			}
			if err := o.vault.Remember(ctx, sess.ID, "assistant", answer); err != nil {
				log.Printf("[orchestrator] vault write failed: %v", err)
			}
		}
	}

	log.Printf("[orchestrator] complete: plan=%s chars=%d elapsed=%s debug=%v", p.PlanID, len(answer), time.Since(start).Round(time.Millisecond), debug)
}

// Health reports reachability of the pipeline's dependencies.
func (o *Orchestrator) Health(ctx context.Context) map[string]bool {
	externals := false
	if o.fast != nil && o.fast.Health(ctx) {
		externals = true
	}
	if !externals && o.strong != nil && o.strong.Health(ctx) {
		externals = true
	}

	return map[string]bool{
		"local":     o.local.Health(ctx),
		"tools":     len(o.tools) > 0,
		"externals": externals,
	}
}

// CostSummary exposes the tracker's statistics. Empty sessionID means
// the process-wide view.
func (o *Orchestrator) CostSummary(sessionID string) map[string]any {
	return o.tracker.Summary(sessionID)
}

// Tracker exposes the cost tracker for callers that gate their own
// work (e.g. the CLI's manual override toggle).
func (o *Orchestrator) Tracker() *cost.Tracker {
	return o.tracker
}
