// Package plugin defines the adapter slots the engine composes sessions
// from, the plugin contracts for each slot, and the registry that indexes
// instances by (slot, name).
package plugin

// Slot identifies the kind of adapter a plugin provides. The set is closed.
type Slot string

const (
	SlotRuntime   Slot = "runtime"
	SlotAgent     Slot = "agent"
	SlotWorkspace Slot = "workspace"
	SlotTracker   Slot = "tracker"
	SlotSCM       Slot = "scm"
	SlotNotifier  Slot = "notifier"
	SlotTerminal  Slot = "terminal"
)

// Slots lists every valid slot.
var Slots = []Slot{
	SlotRuntime, SlotAgent, SlotWorkspace, SlotTracker,
	SlotSCM, SlotNotifier, SlotTerminal,
}

// Manifest describes a plugin for indexing and display.
type Manifest struct {
	Slot        Slot
	Name        string
	Description string
}

// Factory constructs a plugin instance from slot-specific options.
// The returned value must implement the slot's contract interface.
type Factory func(options map[string]any) (any, error)

// Module pairs a manifest with its factory. Builtin modules are compiled
// in; per-project modules are reserved for later.
type Module struct {
	Manifest Manifest
	New      Factory
}
