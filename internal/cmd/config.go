package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/style"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupServices,
	Short:   "Show the resolved configuration",
	Long: `Show the effective configuration after defaults: directories, poll
interval, projects, reactions, and the plugins loaded for each slot.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", style.Bold.Render("Engine"))
	fmt.Printf("  Data dir:      %s\n", a.cfg.DataDir)
	fmt.Printf("  Worktree dir:  %s\n", a.cfg.WorktreeDir)
	fmt.Printf("  Poll interval: %s\n", a.cfg.PollInterval.Std())

	fmt.Printf("\n%s\n", style.Bold.Render("Projects"))
	if len(a.cfg.Projects) == 0 {
		fmt.Println("  (none configured)")
	}
	ids := make([]string, 0, len(a.cfg.Projects))
	for id := range a.cfg.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := a.cfg.Projects[id]
		fmt.Printf("  %s  repo=%s path=%s prefix=%s\n", id, p.Repo, p.Path, p.SessionPrefix)
	}

	fmt.Printf("\n%s\n", style.Bold.Render("Reactions"))
	keys := make([]string, 0, len(a.cfg.Reactions))
	for k := range a.cfg.Reactions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r := a.cfg.Reactions[k]
		state := "off"
		if r.Auto {
			state = "auto"
		}
		fmt.Printf("  %-20s %-14s %s\n", k, r.Action, state)
	}

	fmt.Printf("\n%s\n", style.Bold.Render("Plugins"))
	for _, slot := range plugin.Slots {
		manifests := a.registry.List(slot)
		sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
		for _, m := range manifests {
			fmt.Printf("  %-10s %-15s %s\n", slot, m.Name, m.Description)
		}
	}
	return nil
}
