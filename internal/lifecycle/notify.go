package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/plugin"
)

// notifyHuman fans an event out to every notifier routed for its priority.
// Individual notifier failures are logged and swallowed; delivery is
// fire-and-forget from the engine's perspective.
func (e *Engine) notifyHuman(ctx context.Context, ev *events.Event) {
	for _, name := range e.cfg.NotifiersFor(ev.Priority) {
		pluginName := name
		if nc, ok := e.cfg.Notifiers[name]; ok && nc.Plugin != "" {
			pluginName = nc.Plugin
		}
		notifier, ok := plugin.Lookup[plugin.Notifier](e.registry, plugin.SlotNotifier, pluginName)
		if !ok {
			e.log.Warn("notifier not available", zap.String("notifier", name))
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			e.log.Warn("notification failed",
				zap.String("notifier", name),
				zap.String("event", string(ev.Type)),
				zap.Error(err))
		}
	}
}
