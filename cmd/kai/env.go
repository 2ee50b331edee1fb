package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/EanHD/kai/internal/config"
	"github.com/EanHD/kai/internal/knowledge"
	"github.com/EanHD/kai/internal/memory"
	"github.com/EanHD/kai/internal/orchestrator"
	"github.com/EanHD/kai/internal/providers"
	"github.com/EanHD/kai/internal/sandbox"
	"github.com/EanHD/kai/internal/session"
	"github.com/EanHD/kai/internal/tools"
	"github.com/EanHD/kai/internal/tools/codeexec"
	"github.com/EanHD/kai/internal/tools/ragtool"
	"github.com/EanHD/kai/internal/tools/sentiment"
	"github.com/EanHD/kai/internal/tools/websearch"
)

// runtimeEnv bundles everything the REPL needs.
type runtimeEnv struct {
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Store
	CostLimit    float64

	vault   *memory.Store
	index   *knowledge.Index
	watcher *knowledge.Watcher
}

func (r *runtimeEnv) Close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.index != nil {
		r.index.Close()
	}
	if r.vault != nil {
		r.vault.Close()
	}
}

func (r *runtimeEnv) resumeOrCreate(resume bool) *session.Session {
	if resume {
		if sess, err := r.Sessions.Latest(); err == nil && sess != nil {
			return sess
		}
	}
	sess := session.New(r.CostLimit)
	if err := r.Sessions.Save(sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	return sess
}

func prepareRuntimeEnv(ctx context.Context, costLimitFlag float64) (*runtimeEnv, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	cfg, err := manager.Load()
	if err != nil {
		return nil, err
	}
	applyConfigToEnv(cfg)

	costLimit := cfg.CostLimit
	if costLimitFlag > 0 {
		costLimit = costLimitFlag
	}

	slots, err := providers.NewSlotsFromEnv()
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{
		Sessions:  session.NewStore(manager.Dir()),
		CostLimit: costLimit,
	}

	// Memory vault is best-effort: the pipeline works without it
	vault, err := memory.Open(ctx, filepath.Join(manager.Dir(), "memory.db"))
	if err != nil {
		log.Printf("memory vault unavailable: %v", err)
	} else {
		env.vault = vault
	}

	registry := tools.Registry{
		"code_exec":  codeexec.New(sandbox.NewDefaultRunner(), 0, true),
		"web_search": websearch.New(&http.Client{Timeout: 10 * time.Second}, true),
		"sentiment":  sentiment.New(true),
	}

	if docsDir := knowledgeDir(cfg); docsDir != "" {
		index, err := knowledge.Open(filepath.Join(manager.Dir(), "knowledge.bleve"), docsDir)
		if err != nil {
			log.Printf("knowledge index unavailable: %v", err)
		} else {
			env.index = index
			if err := index.Reindex(ctx); err != nil {
				log.Printf("knowledge reindex failed: %v", err)
			}
			if watcher, err := knowledge.NewWatcher(index); err == nil {
				watcher.Start()
				env.watcher = watcher
			} else {
				log.Printf("knowledge watcher unavailable: %v", err)
			}
			registry["rag"] = ragtool.New(index, true)
		}
	}

	o, err := orchestrator.New(orchestrator.Options{
		Local:           slots.Local,
		Fast:            slots.Fast,
		Strong:          slots.Strong,
		Tools:           registry,
		CostLimit:       costLimit,
		SoftCapFraction: cfg.SoftCapFraction,
		Memory:          env.vault,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Orchestrator = o
	return env, nil
}

// applyConfigToEnv projects file config into env vars the provider
// factory reads, without clobbering values the user exported.
func applyConfigToEnv(cfg *config.Config) {
	setIfEmpty("KAI_LOCAL_BASE_URL", cfg.LocalBaseURL)
	setIfEmpty("KAI_LOCAL_MODEL", cfg.LocalModel)
	setIfEmpty("ANTHROPIC_API_KEY", cfg.AnthropicKey)
	setIfEmpty("XAI_API_KEY", cfg.XAIKey)
}

func setIfEmpty(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}

func knowledgeDir(cfg *config.Config) string {
	if dir := os.Getenv("KAI_KNOWLEDGE_DIR"); dir != "" {
		return dir
	}
	return cfg.KnowledgeDir
}
