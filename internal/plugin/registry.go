package plugin

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/logger"
)

// Registry indexes plugin instances by (slot, name). Instances are
// process-global singletons; plugins handle their own internal locking.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]*entry
	log     *logger.Logger
}

type key struct {
	slot Slot
	name string
}

type entry struct {
	manifest Manifest
	instance any
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Default()
	}
	return &Registry{
		entries: make(map[key]*entry),
		log:     log.Named("registry"),
	}
}

// Register constructs an instance from the module's factory and indexes it.
// Re-registering the same (slot, name) replaces the previous instance.
// Modules without a manifest name or factory are skipped silently, matching
// the loose loading semantics for optional plugins.
func (r *Registry) Register(mod *Module, options map[string]any) error {
	if mod == nil || mod.Manifest.Name == "" || mod.New == nil {
		return nil
	}
	inst, err := mod.New(options)
	if err != nil {
		return fmt.Errorf("instantiating %s/%s: %w", mod.Manifest.Slot, mod.Manifest.Name, err)
	}
	r.mu.Lock()
	r.entries[key{mod.Manifest.Slot, mod.Manifest.Name}] = &entry{manifest: mod.Manifest, instance: inst}
	r.mu.Unlock()
	r.log.Debug("registered plugin",
		zap.String("slot", string(mod.Manifest.Slot)),
		zap.String("name", mod.Manifest.Name))
	return nil
}

// Get returns the raw instance for (slot, name), or nil when absent.
// Consumers that need a typed instance use the package-level Lookup.
func (r *Registry) Get(slot Slot, name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{slot, name}]
	if !ok {
		return nil
	}
	return e.instance
}

// List returns the manifests registered for a slot.
func (r *Registry) List(slot Slot) []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Manifest
	for k, e := range r.entries {
		if k.slot == slot {
			out = append(out, e.manifest)
		}
	}
	return out
}

// Lookup fetches a typed plugin instance. The second result is false when
// the plugin is missing or does not implement T. Missing plugins never
// raise; callers decide whether a slot is required.
func Lookup[T any](r *Registry, slot Slot, name string) (T, bool) {
	var zero T
	if name == "" {
		return zero, false
	}
	inst := r.Get(slot, name)
	if inst == nil {
		return zero, false
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// LoadModules registers a set of modules, extracting each one's options
// from the orchestrator config. Individual failures are logged and skipped
// so one broken plugin cannot take down loading.
func (r *Registry) LoadModules(cfg *config.Config, modules []*Module) {
	for _, mod := range modules {
		opts := extractOptions(cfg, mod)
		if err := r.Register(mod, opts); err != nil {
			r.log.Warn("skipping plugin",
				zap.String("slot", string(mod.Manifest.Slot)),
				zap.String("name", mod.Manifest.Name),
				zap.Error(err))
		}
	}
}

// LoadFromConfig loads builtin modules, then (reserved) per-project plugins
// by package name or local path. Per-project loading is not implemented;
// builtins cover every slot the engine consumes.
func (r *Registry) LoadFromConfig(cfg *config.Config, modules []*Module) {
	r.LoadModules(cfg, modules)
}

// extractOptions pulls slot/name-specific options out of the config.
// Notifier plugins receive the options of every notifier entry that names
// them; other slots receive engine-level paths they need.
func extractOptions(cfg *config.Config, mod *Module) map[string]any {
	if cfg == nil {
		return nil
	}
	opts := make(map[string]any)
	switch mod.Manifest.Slot {
	case SlotWorkspace:
		opts["worktreeDir"] = cfg.WorktreeDir
	case SlotNotifier:
		for name, nc := range cfg.Notifiers {
			if nc.Plugin == mod.Manifest.Name {
				opts["name"] = name
				for k, v := range nc.Options {
					opts[k] = v
				}
			}
		}
	}
	return opts
}
