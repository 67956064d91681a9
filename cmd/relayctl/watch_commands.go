package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relayfeed/internal/app"
	"relayfeed/internal/usecase/watchlist"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watch list",
	}
	watchCmd.AddCommand(newWatchAddCommand(ctx))
	watchCmd.AddCommand(newWatchRemoveCommand(ctx))
	watchCmd.AddCommand(newWatchListCommand(ctx))
	return watchCmd
}

func newWatchAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>...",
		Short: "Add one or more watch titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				svc := &watchlist.Service{Repo: store.Watches}
				for _, raw := range args {
					title, added, err := svc.Add(cmd.Context(), raw)
					if err != nil {
						return fmt.Errorf("add %q: %w", raw, err)
					}
					if added {
						fmt.Fprintf(cmd.OutOrStdout(), "Added %q\n", title)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%q is already on the watch list\n", title)
					}
				}
				return nil
			})
		},
	}
}

func newWatchRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <title>",
		Aliases: []string{"rm"},
		Short:   "Remove a watch title (case-insensitive)",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				svc := &watchlist.Service{Repo: store.Watches}
				removed, err := svc.Remove(cmd.Context(), raw)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%q is not on the watch list", strings.TrimSpace(raw))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", strings.TrimSpace(raw))
				return nil
			})
		},
	}
}

func newWatchListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List watch titles in match order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *app.Store) error {
				svc := &watchlist.Service{Repo: store.Watches}
				titles, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.flags.json {
					type jsonTitle struct {
						Title     string    `json:"title"`
						CreatedAt time.Time `json:"created_at"`
					}
					out := make([]jsonTitle, 0, len(titles))
					for _, t := range titles {
						out = append(out, jsonTitle{Title: t.Title, CreatedAt: t.CreatedAt})
					}
					return writeJSON(cmd, out)
				}
				if len(titles) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Watch list is empty")
					return nil
				}
				rows := make([][]string, 0, len(titles))
				for i, t := range titles {
					rows = append(rows, []string{strconv.Itoa(i + 1), t.Title, t.CreatedAt.Local().Format(time.DateTime)})
				}
				printTable(cmd, []string{"#", "Title", "Added"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
				return nil
			})
		},
	}
}
