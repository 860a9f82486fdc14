package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/cache"
)

var cachePurgeYes bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local build cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local cache entry count and disk usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, bytes, err := cacheUsage(cfg.CacheDir)
		if err != nil {
			return err
		}
		fmt.Printf("cache dir:  %s\n", cfg.CacheDir)
		fmt.Printf("entries:    %d\n", entries)
		fmt.Printf("disk usage: %d bytes\n", bytes)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every entry from the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cachePurgeYes {
			return fmt.Errorf("refusing to purge %s without --yes", cfg.CacheDir)
		}
		if err := os.RemoveAll(filepath.Join(cfg.CacheDir, "objects")); err != nil {
			return fmt.Errorf("purging cache objects: %w", err)
		}
		if err := os.RemoveAll(filepath.Join(cfg.CacheDir, "meta")); err != nil {
			return fmt.Errorf("purging cache metadata: %w", err)
		}
		if _, err := cache.NewLocal(cfg.CacheDir); err != nil {
			return err
		}
		fmt.Println("cache purged")
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().BoolVar(&cachePurgeYes, "yes", false, "confirm deletion of all cache entries")
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
}

func cacheUsage(root string) (entries int, bytes int64, err error) {
	objectsDir := filepath.Join(root, "objects")
	err = filepath.Walk(objectsDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		entries++
		bytes += info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		err = nil
	}
	return entries, bytes, err
}
