package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry count and size",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached result",
				Action: runCacheClear,
			},
		},
	}
}

func runCacheStats(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	rc, err := e.cache()
	if err != nil {
		return err
	}
	if !rc.Enabled() {
		color.Yellow("Cache is disabled")
		return nil
	}
	stats, err := rc.GetStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Cache: %s\nEntries: %d\nSize: %d bytes\n", e.cfg.Cache.Dir, stats.Entries, stats.TotalSize)
	return nil
}

func runCacheClear(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	rc, err := e.cache()
	if err != nil {
		return err
	}
	if err := rc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("Cache cleared")
	return nil
}
