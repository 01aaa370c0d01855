// Package cmd implements the ao CLI: session CRUD commands plus daemon
// management for the lifecycle loop.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/lifecycle"
	"github.com/agentops/overseer/internal/logger"
	"github.com/agentops/overseer/internal/manager"
	"github.com/agentops/overseer/internal/metadata"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/plugins"
)

// Command groups for help output.
const (
	GroupSessions = "sessions"
	GroupServices = "services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ao",
	Short: "Supervise concurrent AI coding agent sessions",
	Long: `ao spawns AI coding agents in isolated tmux sessions and git worktrees,
watches them from issue to merged pull request, and reacts to what it
sees: nudging stuck agents, surfacing CI failures, and telling you when
a branch is ready to merge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSessions, Title: "Session Commands:"},
		&cobra.Group{ID: GroupServices, Title: "Service Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.overseer/config.yaml)")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// app is the wired engine shared by the commands: config, metadata store,
// plugin registry, session manager, lifecycle loop.
type app struct {
	cfg       *config.Config
	store     *metadata.Store
	registry  *plugin.Registry
	sessions  *manager.Manager
	lifecycle *lifecycle.Manager
}

var (
	appOnce sync.Once
	appInst *app
	appErr  error
)

// getApp builds the engine once per process.
func getApp() (*app, error) {
	appOnce.Do(func() {
		cfg, err := loadConfig()
		if err != nil {
			appErr = err
			return
		}
		log, err := logger.New(cfg.Logging)
		if err != nil {
			appErr = fmt.Errorf("initializing logger: %w", err)
			return
		}
		logger.SetDefault(log)

		store := metadata.NewStore(cfg.DataDir)
		registry := plugin.NewRegistry(log)
		registry.LoadFromConfig(cfg, plugins.Builtins())
		sessions := manager.New(cfg, store, registry, log)
		appInst = &app{
			cfg:       cfg,
			store:     store,
			registry:  registry,
			sessions:  sessions,
			lifecycle: lifecycle.New(cfg, sessions, registry, log),
		}
	})
	return appInst, appErr
}

// loadConfig resolves the config path: the --config flag, $AO_CONFIG, then
// ~/.overseer/config.yaml. A missing default file yields a default config
// with no projects rather than an error.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("AO_CONFIG")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		path = filepath.Join(home, ".overseer", "config.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Parse(nil)
		}
	}
	return config.Load(config.ExpandHome(path))
}
