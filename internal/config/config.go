// Package config loads the overseer YAML configuration: data directories,
// plugin defaults, projects, notifier routing, and reaction policies.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentops/overseer/internal/events"
	"github.com/agentops/overseer/internal/logger"
)

// DefaultPollInterval is the lifecycle loop interval when the config does
// not override it.
const DefaultPollInterval = 30 * time.Second

// Duration parses YAML scalars like "30s" or "5m" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the single per-process configuration.
type Config struct {
	DataDir     string `yaml:"dataDir"`
	WorktreeDir string `yaml:"worktreeDir"`

	// Port is reserved for the dashboard; the engine ignores it.
	Port int `yaml:"port"`

	PollInterval Duration `yaml:"pollInterval"`

	Defaults  Defaults                   `yaml:"defaults"`
	Projects  map[string]*Project        `yaml:"projects"`
	Notifiers map[string]NotifierConfig  `yaml:"notifiers"`
	Routing   map[string][]string        `yaml:"notificationRouting"`
	Reactions map[string]*ReactionConfig `yaml:"reactions"`
	Logging   logger.Config              `yaml:"logging"`
}

// Defaults names the plugins used when a project does not override them.
type Defaults struct {
	Runtime   string   `yaml:"runtime"`
	Agent     string   `yaml:"agent"`
	Workspace string   `yaml:"workspace"`
	Tracker   string   `yaml:"tracker"`
	SCM       string   `yaml:"scm"`
	Notifiers []string `yaml:"notifiers"`
}

// Project configures one supervised repository.
type Project struct {
	Name          string `yaml:"name"`
	Repo          string `yaml:"repo"` // "owner/repo"
	Path          string `yaml:"path"`
	DefaultBranch string `yaml:"defaultBranch"`
	SessionPrefix string `yaml:"sessionPrefix"`

	Runtime   string `yaml:"runtime"`
	Agent     string `yaml:"agent"`
	Workspace string `yaml:"workspace"`
	Tracker   string `yaml:"tracker"`
	SCM       string `yaml:"scm"`

	Symlinks    []string                   `yaml:"symlinks"`
	PostCreate  string                     `yaml:"postCreate"`
	AgentConfig map[string]any             `yaml:"agentConfig"`
	Reactions   map[string]*ReactionConfig `yaml:"reactions"`
}

// NotifierConfig selects a notifier plugin plus its plugin-specific options.
type NotifierConfig struct {
	Plugin  string         `yaml:"plugin"`
	Options map[string]any `yaml:",inline"`
}

// ReactionConfig is the policy for one reaction key.
type ReactionConfig struct {
	// Auto enables the reaction. When false, only notify actions still run.
	Auto   bool   `yaml:"auto"`
	Action string `yaml:"action"` // send-to-agent, notify, auto-merge

	Message  string          `yaml:"message"`
	Priority events.Priority `yaml:"priority"`

	// Retries caps attempts before escalation. Zero means unbounded.
	Retries int `yaml:"retries"`

	// EscalateAfter is either an attempt count ("3") or a duration ("10m").
	// Whichever threshold is crossed first escalates.
	EscalateAfter string `yaml:"escalateAfter"`

	// Threshold is reserved for time-triggered reactions; the loop does not
	// consume it yet.
	Threshold string `yaml:"threshold"`

	IncludeSummary bool `yaml:"includeSummary"`
}

// Reaction actions.
const (
	ActionSendToAgent = "send-to-agent"
	ActionNotify      = "notify"
	ActionAutoMerge   = "auto-merge"
)

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	if c.DataDir == "" {
		c.DataDir = filepath.Join(home, ".overseer", "sessions")
	}
	if c.WorktreeDir == "" {
		c.WorktreeDir = filepath.Join(home, ".overseer", "worktrees")
	}
	c.DataDir = ExpandHome(c.DataDir)
	c.WorktreeDir = ExpandHome(c.WorktreeDir)
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Defaults.Runtime == "" {
		c.Defaults.Runtime = "tmux"
	}
	if c.Defaults.Agent == "" {
		c.Defaults.Agent = "claude"
	}
	for id, p := range c.Projects {
		if p == nil {
			continue
		}
		if p.Name == "" {
			p.Name = id
		}
		if p.DefaultBranch == "" {
			p.DefaultBranch = "main"
		}
		if p.SessionPrefix == "" {
			p.SessionPrefix = id
		}
		p.Path = ExpandHome(p.Path)
	}
}

func (c *Config) validate() error {
	for id, p := range c.Projects {
		if p == nil {
			return fmt.Errorf("project %q: empty config", id)
		}
		if p.Path == "" {
			return fmt.Errorf("project %q: path is required", id)
		}
	}
	for key, r := range c.Reactions {
		if r != nil && r.Action == "" {
			return fmt.Errorf("reaction %q: action is required", key)
		}
	}
	return nil
}

// Project looks up a project by id.
func (c *Config) Project(id string) (*Project, error) {
	p, ok := c.Projects[id]
	if !ok || p == nil {
		return nil, fmt.Errorf("unknown project: %s", id)
	}
	return p, nil
}

// ReactionsFor merges project reaction overrides over the global table,
// per key. A project key replaces the global key wholesale.
func (c *Config) ReactionsFor(projectID string) map[string]*ReactionConfig {
	merged := make(map[string]*ReactionConfig, len(c.Reactions))
	for k, v := range c.Reactions {
		merged[k] = v
	}
	if p, ok := c.Projects[projectID]; ok && p != nil {
		for k, v := range p.Reactions {
			merged[k] = v
		}
	}
	return merged
}

// NotifiersFor returns the notifier names for a priority, falling back to
// the default notifier list when no route is configured.
func (c *Config) NotifiersFor(priority events.Priority) []string {
	if names, ok := c.Routing[string(priority)]; ok && len(names) > 0 {
		return names
	}
	return c.Defaults.Notifiers
}

// RuntimeFor resolves the runtime plugin name for a project.
func (c *Config) RuntimeFor(p *Project) string {
	if p != nil && p.Runtime != "" {
		return p.Runtime
	}
	return c.Defaults.Runtime
}

// AgentFor resolves the agent plugin name for a project.
func (c *Config) AgentFor(p *Project) string {
	if p != nil && p.Agent != "" {
		return p.Agent
	}
	return c.Defaults.Agent
}

// WorkspaceFor resolves the workspace plugin name; empty means the session
// runs in the project's main path.
func (c *Config) WorkspaceFor(p *Project) string {
	if p != nil && p.Workspace != "" {
		return p.Workspace
	}
	return c.Defaults.Workspace
}

// TrackerFor resolves the tracker plugin name; empty means no tracker.
func (c *Config) TrackerFor(p *Project) string {
	if p != nil && p.Tracker != "" {
		return p.Tracker
	}
	return c.Defaults.Tracker
}

// SCMFor resolves the SCM plugin name; empty means no SCM polling.
func (c *Config) SCMFor(p *Project) string {
	if p != nil && p.SCM != "" {
		return p.SCM
	}
	return c.Defaults.SCM
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
