package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/festlist/internal/repositories"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats reports response cache occupancy and, when a user is given,
// their quota usage over the current window.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	r.writePlain("Cached responses: %d\n", r.gate.CacheLen())
	r.writePlain("Cache TTL: %s\n", r.config.Gate.CacheTTL())

	if userID == "" {
		return nil
	}

	quota, err := r.openQuotaRepo()
	if err != nil {
		return err
	}

	window := r.config.Gate.QuotaWindow()
	used, err := quota.CountSince(userID, time.Now().Add(-window))
	if err != nil {
		return fmt.Errorf("failed to count quota events: %w", err)
	}

	r.writePlain("\nUser %s: %d/%d calls in the last %s\n", userID, used, r.config.Gate.UserQuota, window)
	return nil
}

// CacheClear drops every cached response.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	before := r.gate.CacheLen()
	r.gate.Purge()
	r.writePlain("✓ Dropped %d cached responses\n", before)
	return nil
}

// QuotaPrune deletes quota events older than the quota window.
func (r *Runner) QuotaPrune(ctx context.Context, cmd *cli.Command) error {
	quota, err := r.openQuotaRepo()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-r.config.Gate.QuotaWindow())
	pruned, err := quota.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune quota events: %w", err)
	}

	r.writePlain("✓ Pruned %d quota events older than %s\n", pruned, cutoff.Format(time.RFC3339))
	return nil
}

// openQuotaRepo opens the quota ledger backing store. Callers use it for
// one command invocation; the connection closes with the process.
func (r *Runner) openQuotaRepo() (*repositories.QuotaRepository, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run 'festlist setup' first): %w", err)
	}
	return repositories.NewQuotaRepository(db), nil
}

// cacheCommand inspects and clears the response cache and quota ledger.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the response cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache occupancy and per-user quota usage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Report quota usage for this user ID",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Drop all cached responses",
				Action: r.CacheClear,
			},
			{
				Name:   "prune",
				Usage:  "Delete quota events older than the quota window",
				Action: r.QuotaPrune,
			},
		},
	}
}
