package main

import (
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cliutil"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile and package every project in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		err = e.runGoal(cmd.Context(), e.graph.BuildGoals(), "build")
		if cmd.Context().Err() != nil {
			cliutil.PrintCancelled("build")
		}
		return err
	},
}
