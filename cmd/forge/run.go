package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cliutil"
	"github.com/forgebuild/forge/internal/forgeerr"
	"github.com/forgebuild/forge/internal/graph"
)

var runTaskCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a single task by ID, e.g. a custom task or project/kind[/qualifier]",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		id := resolveTaskArg(args[0], e.ws.Projects[0].Name())
		if _, ok := e.graph.Get(id); !ok {
			return forgeerr.Newf(forgeerr.Config, "no such task %q", id)
		}

		err = e.runGoal(cmd.Context(), []graph.ID{id}, string(id))
		if cmd.Context().Err() != nil {
			cliutil.PrintCancelled("run")
		}
		return err
	},
}

// resolveTaskArg turns a CLI task argument into a graph.ID: a literal
// "project/kind[/qualifier]" reference if it contains a slash, otherwise a
// custom task name resolved against the workspace's root project.
func resolveTaskArg(arg, rootProject string) graph.ID {
	if strings.Contains(arg, "/") {
		return graph.ID(arg)
	}
	return graph.NewID(rootProject, graph.Custom, arg)
}
