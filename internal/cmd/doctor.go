package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/doctor"
	"github.com/agentops/overseer/internal/style"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupServices,
	Short:   "Diagnose the environment",
	Long: `Check that the binaries, directories, and daemon state ao depends on
are healthy. Exits non-zero when any check fails.

Examples:
  ao doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	results, healthy := doctor.Run(&doctor.CheckContext{
		Ctx:    cmd.Context(),
		Config: a.cfg,
	}, doctor.All())

	for _, r := range results {
		fmt.Printf("%s %s: %s\n", statusMark(r.Status), style.Bold.Render(r.Name), r.Message)
		for _, d := range r.Details {
			fmt.Printf("    %s\n", style.Dim.Render(d))
		}
		if r.FixHint != "" && r.Status != doctor.StatusOK {
			fmt.Printf("    %s\n", style.Dim.Render("fix: "+r.FixHint))
		}
	}

	if !healthy {
		return errors.New("some checks failed")
	}
	return nil
}

func statusMark(s doctor.Status) string {
	switch s {
	case doctor.StatusOK:
		return style.Green.Render("✓")
	case doctor.StatusWarning:
		return style.Yellow.Render("!")
	default:
		return style.Red.Render("✗")
	}
}
