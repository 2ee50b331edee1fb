package providers

import (
	"fmt"
	"log"
	"os"

	"github.com/EanHD/kai/internal/llm"
)

// Slots bundles the three connector roles the orchestrator needs:
// the local workhorse (analyzer + presenter) and the two specialist
// tiers. Fast and Strong may be nil when unconfigured; the verifier
// reports that as a structured error instead of failing.
type Slots struct {
	Local  llm.Connector
	Fast   llm.Connector
	Strong llm.Connector
}

// NewSlotsFromEnv builds connectors from environment variables.
//
// Local (required, OpenAI-compatible runtime):
//   KAI_LOCAL_BASE_URL (default http://localhost:11434/v1, Ollama)
//   KAI_LOCAL_MODEL    (default granite3.1-dense)
//   KAI_LOCAL_API_KEY  (default "ollama"; local servers accept anything)
//
// Fast specialist (optional, OpenAI-compatible):
//   XAI_API_KEY + KAI_FAST_MODEL (default grok-beta) via https://api.x.ai/v1
//   or OPENROUTER_API_KEY + KAI_FAST_MODEL via https://openrouter.ai/api/v1
//
// Strong specialist (optional, Anthropic):
//   ANTHROPIC_API_KEY + KAI_STRONG_MODEL (default claude-3-5-sonnet-20241022)
func NewSlotsFromEnv() (Slots, error) {
	local, err := newLocalFromEnv()
	if err != nil {
		return Slots{}, err
	}

	slots := Slots{Local: local}

	if fast, err := newFastFromEnv(); err != nil {
		log.Printf("[providers] fast specialist unavailable: %v", err)
	} else {
		slots.Fast = fast
	}

	if strong, err := newStrongFromEnv(); err != nil {
		log.Printf("[providers] strong specialist unavailable: %v", err)
	} else {
		slots.Strong = strong
	}

	return slots, nil
}

func newLocalFromEnv() (llm.Connector, error) {
	baseURL := os.Getenv("KAI_LOCAL_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	modelName := os.Getenv("KAI_LOCAL_MODEL")
	if modelName == "" {
		modelName = "granite3.1-dense"
	}

	apiKey := os.Getenv("KAI_LOCAL_API_KEY")
	if apiKey == "" {
		apiKey = "ollama"
	}

	client, err := NewOpenAIClient(apiKey, modelName, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create local connector: %w", err)
	}
	return client, nil
}

func newFastFromEnv() (llm.Connector, error) {
	modelName := os.Getenv("KAI_FAST_MODEL")

	if apiKey := os.Getenv("XAI_API_KEY"); apiKey != "" {
		if modelName == "" {
			modelName = "grok-beta"
		}
		return NewOpenAIClient(apiKey, modelName, "https://api.x.ai/v1")
	}

	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		if modelName == "" {
			modelName = "x-ai/grok-beta"
		}
		return NewOpenAIClient(apiKey, modelName, "https://openrouter.ai/api/v1")
	}

	return nil, fmt.Errorf("XAI_API_KEY or OPENROUTER_API_KEY not set")
}

func newStrongFromEnv() (llm.Connector, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	modelName := os.Getenv("KAI_STRONG_MODEL")
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}

	return NewAnthropicClient(apiKey, modelName)
}
