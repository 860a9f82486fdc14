package main

import (
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cliutil"
	"github.com/forgebuild/forge/internal/graph"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Produce the packaged artifact for every project, without post-build hooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		goals := make([]graph.ID, 0, len(e.ws.Projects))
		for _, p := range e.ws.Projects {
			goals = append(goals, graph.NewID(p.Name(), graph.Package, ""))
		}

		err = e.runGoal(cmd.Context(), goals, "package")
		if cmd.Context().Err() != nil {
			cliutil.PrintCancelled("package")
		}
		return err
	},
}
