package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cache/history"
)

var historyCmd = &cobra.Command{
	Use:   "history <build-id>",
	Short: "Show recorded cache statistics for one past build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspaceRoot()
		if err != nil {
			return err
		}
		store, err := history.Open(filepath.Join(ws, ".forge", "history.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.BuildStats(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("build:       %s\n", stats.BuildID)
		fmt.Printf("goal:        %s\n", stats.Goal)
		fmt.Printf("tasks:       %d\n", stats.TaskCount)
		fmt.Printf("cache hits:  %d\n", stats.CacheHits)
		fmt.Printf("cache miss:  %d\n", stats.CacheMisses)
		fmt.Printf("failed:      %t\n", stats.Failed)
		return nil
	},
}

func resolveWorkspaceRoot() (string, error) {
	return filepath.Abs(flagWorkspaceDir)
}
