package limiter

import (
	"sync"
	"time"
)

// Builtin preset names. Every gated action checks through a named
// preset so limits live in one place, not scattered as literals.
const (
	PresetAPI             = "api"
	PresetAccountCreation = "account_creation"
	PresetWebhook         = "webhook"
)

func builtinPresets() map[string]Config {
	return map[string]Config{
		PresetAPI: {
			Requests:     100,
			Window:       time.Minute,
			Strategy:     FixedWindow,
			ErrorMessage: "too many requests, slow down",
		},
		PresetAccountCreation: {
			Requests:     5,
			Window:       5 * time.Minute,
			Strategy:     SlidingWindow,
			ErrorMessage: "too many account creation attempts, try again later",
		},
		PresetWebhook: {
			Requests:     1000,
			Window:       time.Minute,
			Strategy:     FixedWindow,
			ErrorMessage: "webhook rate limit exceeded",
		},
	}
}

// Registry resolves preset names to configs. It starts with the
// builtins and accepts runtime overrides (the control plane pushes
// them through the etcd watcher).
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

func NewRegistry() *Registry {
	return &Registry{configs: builtinPresets()}
}

func (r *Registry) Get(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

func (r *Registry) Set(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
}

// Reset drops an override, restoring the builtin if one exists.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if builtin, ok := builtinPresets()[name]; ok {
		r.configs[name] = builtin
		return
	}
	delete(r.configs, name)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}
