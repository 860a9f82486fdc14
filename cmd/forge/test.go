package main

import (
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cliutil"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Compile and run tests for every project in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		err = e.runGoal(cmd.Context(), e.graph.TestGoals(), "test")
		if cmd.Context().Err() != nil {
			cliutil.PrintCancelled("test")
		}
		return err
	},
}
