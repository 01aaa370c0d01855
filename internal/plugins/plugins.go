// Package plugins assembles the builtin plugin modules compiled into the
// binary. The registry loads these at startup; config selects which ones a
// project actually uses.
package plugins

import (
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/plugins/claude"
	"github.com/agentops/overseer/internal/plugins/gemini"
	"github.com/agentops/overseer/internal/plugins/ghissues"
	"github.com/agentops/overseer/internal/plugins/github"
	"github.com/agentops/overseer/internal/plugins/notify"
	"github.com/agentops/overseer/internal/plugins/tmux"
	"github.com/agentops/overseer/internal/plugins/worktree"
)

// Builtins returns every compiled-in plugin module.
func Builtins() []*plugin.Module {
	return []*plugin.Module{
		tmux.Module(),
		claude.Module(),
		gemini.Module(),
		worktree.Module(),
		github.Module(),
		ghissues.Module(),
		notify.DesktopModule(),
		notify.WebhookModule(),
		notify.LogModule(),
	}
}
