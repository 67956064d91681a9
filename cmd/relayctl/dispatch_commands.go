package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"relayfeed/internal/app"
	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
	"relayfeed/internal/usecase/dispatch"
)

func newDispatchesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dispatches",
		Aliases: []string{"ledger"},
		Short:   "Inspect the dispatch ledger",
	}
	cmd.AddCommand(newDispatchesListCommand(ctx))
	cmd.AddCommand(newDispatchesShowCommand(ctx))
	return cmd
}

func newDispatchesListCommand(ctx *commandContext) *cobra.Command {
	var outcome string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dispatch records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := entity.ParseOutcomeStatus(outcome)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				records, err := store.Ledger.List(cmd.Context(), repository.ListFilter{Outcome: status, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.flags.json {
					return writeJSON(cmd, toRecordJSON(records))
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No dispatch records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					detail := r.ShareableLink
					if r.Outcome == entity.OutcomeFailed {
						detail = r.FailureReason
					}
					rows = append(rows, []string{
						r.SubmittedAt.Local().Format(time.DateTime),
						r.EntryKey,
						truncate(r.Title, 60),
						string(r.Outcome),
						truncate(detail, 60),
					})
				}
				printTable(cmd, []string{"Submitted", "Key", "Title", "Outcome", "Link / Reason"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only show records with this outcome (success or failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", repository.DefaultListLimit, "Maximum number of records")
	return cmd
}

func newDispatchesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-key>",
		Short: "Show one dispatch record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				rec, err := store.Ledger.Get(cmd.Context(), args[0])
				if errors.Is(err, entity.ErrNotFound) {
					return fmt.Errorf("no dispatch record for %q", args[0])
				}
				if err != nil {
					return err
				}
				if ctx.flags.json {
					return writeJSON(cmd, toRecordJSON([]*entity.DispatchRecord{rec})[0])
				}
				printRecord(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var title string
	var notifyFlag bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit <link>",
		Short: "Dispatch a source link by hand, bypassing the watch list",
		Long: "Submit hands the link to the transcode service and records the outcome in the ledger.\n" +
			"A link that is already in the ledger is not submitted again.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkerLock(func() error {
				return ctx.withStore(cmd.Context(), func(store *app.Store) error {
					return ctx.withPipeline(store, notifyFlag, func(p *dispatch.Pipeline) error {
						subCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
						defer cancel()

						rec, err := p.Submit(subCtx, title, args[0])
						switch {
						case errors.Is(err, entity.ErrAlreadyDispatched):
							fmt.Fprintln(cmd.OutOrStdout(), "Already dispatched:")
						case errors.Is(err, dispatch.ErrDispatchDeferred):
							return fmt.Errorf("%w; nothing was recorded, try again later", err)
						case err != nil:
							return err
						}
						if ctx.flags.json {
							return writeJSON(cmd, toRecordJSON([]*entity.DispatchRecord{rec})[0])
						}
						printRecord(cmd.OutOrStdout(), rec)
						return nil
					})
				})
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title recorded for the submission (defaults to the link)")
	cmd.Flags().BoolVar(&notifyFlag, "notify", false, "Send the dispatch notice through the configured channels")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Upper bound for the submission including retries")
	return cmd
}

// withPipeline builds a pipeline over store. With notify set the configured
// channels receive notices and are drained before returning.
func (c *commandContext) withPipeline(store *app.Store, notify bool, fn func(*dispatch.Pipeline) error) error {
	cfg := c.ensureConfig()
	opts := app.PipelineOptions{Logger: c.logger}
	if notify {
		notifiers, err := app.NewNotifiers(cfg, c.logger)
		if err != nil {
			return err
		}
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = notifiers.Shutdown(drainCtx)
		}()
		opts.Notifier = notifiers.Service
	}
	p, err := app.NewPipeline(cfg, store, opts)
	if err != nil {
		return err
	}
	return fn(p)
}

type recordJSON struct {
	EntryKey      string    `json:"entry_key"`
	Title         string    `json:"title"`
	MatchedTitle  string    `json:"matched_title,omitempty"`
	SourceLink    string    `json:"source_link"`
	SubmittedAt   time.Time `json:"submitted_at"`
	Outcome       string    `json:"outcome"`
	ArtifactRef   string    `json:"artifact_ref,omitempty"`
	ShareableLink string    `json:"shareable_link,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func toRecordJSON(records []*entity.DispatchRecord) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, recordJSON{
			EntryKey:      r.EntryKey,
			Title:         r.Title,
			MatchedTitle:  r.MatchedTitle,
			SourceLink:    r.SourceLink,
			SubmittedAt:   r.SubmittedAt,
			Outcome:       string(r.Outcome),
			ArtifactRef:   r.ArtifactRef,
			ShareableLink: r.ShareableLink,
			FailureReason: r.FailureReason,
		})
	}
	return out
}

func printRecord(out io.Writer, r *entity.DispatchRecord) {
	fmt.Fprintf(out, "Entry key:  %s\n", r.EntryKey)
	fmt.Fprintf(out, "Title:      %s\n", r.Title)
	if r.MatchedTitle != "" {
		fmt.Fprintf(out, "Matched:    %s\n", r.MatchedTitle)
	}
	fmt.Fprintf(out, "Link:       %s\n", r.SourceLink)
	fmt.Fprintf(out, "Submitted:  %s\n", r.SubmittedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Outcome:    %s\n", r.Outcome)
	if r.ArtifactRef != "" {
		fmt.Fprintf(out, "Artifact:   %s\n", r.ArtifactRef)
	}
	if r.ShareableLink != "" {
		fmt.Fprintf(out, "Share link: %s\n", r.ShareableLink)
	}
	if r.FailureReason != "" {
		fmt.Fprintf(out, "Reason:     %s\n", r.FailureReason)
	}
}
