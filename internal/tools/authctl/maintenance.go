package authctl

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/app"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

func newTokensCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token store maintenance",
	}
	cmd.AddCommand(newTokensPurgeCommand(r))
	return cmd
}

func newTokensPurgeCommand(r *runner) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete token entries older than every possible token lifetime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "tokens purge", func(ctx context.Context, a *app.App) ([]string, error) {
				age := olderThan
				if age <= 0 {
					age = a.Config.LongestTokenTTL() + a.Config.TokenStorePurgeGracePeriod
				}
				purger, ok := a.Store.(tokenstore.Purger)
				if !ok {
					return nil, tokenstore.ErrPurgeNotSupported
				}
				cutoff := r.now().Add(-age).UTC()
				n, err := purger.PurgeCreatedBefore(ctx, cutoff)
				if err != nil {
					return nil, err
				}
				return []string{
					"backend: " + a.Config.TokenStoreBackend,
					"cutoff: " + cutoff.Format(time.RFC3339),
					"purged: " + strconv.FormatInt(n, 10),
				}, nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum entry age; defaults to the longest token ttl plus the purge grace period")
	return cmd
}

func newHealthCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the database and token store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "health", func(ctx context.Context, a *app.App) ([]string, error) {
				ready, results := a.Readiness.Ready(ctx)
				details := make([]string, 0, len(results))
				for _, res := range results {
					line := fmt.Sprintf("%s: healthy=%t duration=%s", res.Name, res.Healthy, res.Duration)
					if res.Error != "" {
						line += " error=" + res.Error
					}
					details = append(details, line)
				}
				if !ready {
					return details, errNotReady
				}
				return details, nil
			})
		},
	}
}

func newErrorsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect recorded command failures",
	}
	cmd.AddCommand(newErrorsListCommand(r))
	return cmd
}

func newErrorsListCommand(r *runner) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded failures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "errors list", func(ctx context.Context, a *app.App) ([]string, error) {
				res, err := a.ErrorLogs.ListPaged(ctx, repository.PageRequest{Page: page, PageSize: pageSize})
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("page %d/%d (total %d)", res.Page, res.TotalPages, res.Total)}
				for _, entry := range res.Items {
					details = append(details, fmt.Sprintf("#%d %s %s: %s",
						entry.ID, entry.CreatedAt.UTC().Format(time.RFC3339), entry.Operation, entry.Description))
				}
				return details, nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "entries per page")
	return cmd
}
