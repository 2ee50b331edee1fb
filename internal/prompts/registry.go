package prompts

import (
	"fmt"
	"sync"
)

// Registry manages versioned prompts. The kernel components ask it for
// the latest prompt by id so prompt revisions never touch the callers.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]map[PromptVersion]*Prompt
}

// NewRegistry creates a registry pre-loaded with the kernel prompts.
func NewRegistry() *Registry {
	r := &Registry{prompts: make(map[string]map[PromptVersion]*Prompt)}
	registerKernelPrompts(r)
	return r
}

// Register registers a prompt in the registry.
func (r *Registry) Register(p *Prompt) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prompts[p.ID] == nil {
		r.prompts[p.ID] = make(map[PromptVersion]*Prompt)
	}
	r.prompts[p.ID][p.Version] = p
}

// GetLatest retrieves the latest non-deprecated version of a prompt.
// If every version is deprecated, the most recent one is returned.
func (r *Registry) GetLatest(id string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", id)
	}

	pick := func(includeDeprecated bool) *Prompt {
		var latest *Prompt
		for version, prompt := range versions {
			if prompt.Deprecated && !includeDeprecated {
				continue
			}
			if latest == nil || version > latest.Version {
				latest = prompt
			}
		}
		return latest
	}

	if p := pick(false); p != nil {
		return p, nil
	}
	if p := pick(true); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("no versions found for prompt: %s", id)
}
