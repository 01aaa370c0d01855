package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/plugin"
)

// Log writes events to the structured log. Useful on headless hosts and as
// a catch-all routing target.
type Log struct {
	log *logger.Logger
}

// LogModule returns the builtin module descriptor.
func LogModule() *plugin.Module {
	return &plugin.Module{
		Manifest: plugin.Manifest{
			Slot:        plugin.SlotNotifier,
			Name:        "log",
			Description: "Writes events to the structured log",
		},
		New: func(map[string]any) (any, error) {
			return &Log{log: logger.Default().Named("notify")}, nil
		},
	}
}

// Name implements plugin.Notifier.
func (l *Log) Name() string { return "log" }

// Notify implements plugin.Notifier.
func (l *Log) Notify(_ context.Context, event *events.Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("priority", string(event.Priority)),
		zap.String("session", event.SessionID),
		zap.String("project", event.ProjectID),
	}
	switch event.Priority {
	case events.PriorityUrgent, events.PriorityWarning:
		l.log.Warn(event.Message, fields...)
	default:
		l.log.Info(event.Message, fields...)
	}
	return nil
}
