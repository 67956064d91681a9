package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relayfeed/internal/app"
	"relayfeed/internal/domain/entity"
	"relayfeed/internal/usecase/dispatch"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect the release feed and run passes by hand",
	}
	cmd.AddCommand(newFeedCheckCommand(ctx))
	cmd.AddCommand(newFeedRunOnceCommand(ctx))
	return cmd
}

// feedStatus is what a pass would do with an entry.
type feedStatus string

const (
	feedStatusNew        feedStatus = "new"
	feedStatusDispatched feedStatus = "dispatched"
	feedStatusIgnored    feedStatus = "ignored"
	feedStatusNoKey      feedStatus = "no key"
)

type feedCheckRow struct {
	Title    string     `json:"title"`
	Link     string     `json:"link"`
	EntryKey string     `json:"entry_key,omitempty"`
	Matched  string     `json:"matched,omitempty"`
	Status   feedStatus `json:"status"`
}

func newFeedCheckCommand(ctx *commandContext) *cobra.Command {
	var onlyMatches bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the feed and show what the next pass would dispatch",
		Long: "Check fetches the feed once and evaluates every entry against the watch list and\n" +
			"the ledger without submitting anything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			entries, err := app.NewFeed(cfg).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch %s: %w", cfg.FeedURL, err)
			}
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				watches, err := store.Watches.List(cmd.Context())
				if err != nil {
					return err
				}
				rows, err := evaluateFeed(cmd.Context(), entries, dispatch.NewMatcher(watches), store)
				if err != nil {
					return err
				}
				if onlyMatches {
					kept := rows[:0]
					for _, r := range rows {
						if r.Status != feedStatusIgnored {
							kept = append(kept, r)
						}
					}
					rows = kept
				}
				if ctx.flags.json {
					return writeJSON(cmd, rows)
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{truncate(r.Title, 70), r.Matched, r.EntryKey, string(r.Status)})
				}
				printTable(cmd, []string{"Title", "Matched", "Key", "Status"}, table, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries, %d watch titles\n", len(entries), len(watches))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&onlyMatches, "matches", false, "Only show entries that match a watch title")
	return cmd
}

func evaluateFeed(ctx context.Context, entries []entity.FeedEntry, m *dispatch.Matcher, store *app.Store) ([]feedCheckRow, error) {
	rows := make([]feedCheckRow, 0, len(entries))
	for _, e := range entries {
		row := feedCheckRow{Title: e.Title, Link: e.SourceLink}
		matched, ok := m.Match(e.Title)
		if !ok {
			row.Status = feedStatusIgnored
			rows = append(rows, row)
			continue
		}
		row.Matched = matched

		key, err := entity.DeriveEntryKey(e)
		if errors.Is(err, entity.ErrEntryKeyUnavailable) {
			row.Status = feedStatusNoKey
			rows = append(rows, row)
			continue
		}
		row.EntryKey = key

		exists, err := store.Ledger.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		row.Status = feedStatusNew
		if exists {
			row.Status = feedStatusDispatched
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newFeedRunOnceCommand(ctx *commandContext) *cobra.Command {
	var notifyFlag bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single dispatch pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkerLock(func() error {
				return ctx.withStore(cmd.Context(), func(store *app.Store) error {
					return ctx.withPipeline(store, notifyFlag, func(p *dispatch.Pipeline) error {
						passCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
						defer cancel()

						stats, err := p.RunPass(passCtx)
						if err != nil {
							return fmt.Errorf("pass failed: %w", err)
						}
						if ctx.flags.json {
							return writeJSON(cmd, stats)
						}
						printTable(cmd,
							[]string{"Entries", "Matched", "Dedup", "Dispatched", "Succeeded", "Failed", "Deferred", "Skipped", "Errors", "Duration"},
							[][]string{{
								fmt.Sprint(stats.Entries), fmt.Sprint(stats.Matched), fmt.Sprint(stats.Deduplicated),
								fmt.Sprint(stats.Dispatched), fmt.Sprint(stats.Succeeded), fmt.Sprint(stats.Failed),
								fmt.Sprint(stats.Deferred), fmt.Sprint(stats.Skipped), fmt.Sprint(stats.Errors),
								stats.Duration.Round(time.Millisecond).String(),
							}},
							[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight})
						return nil
					})
				})
			})
		},
	}
	cmd.Flags().BoolVar(&notifyFlag, "notify", false, "Send dispatch notices through the configured channels")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Upper bound for the pass")
	return cmd
}
