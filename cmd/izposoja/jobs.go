package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/app"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark overdue borrows now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			ids, err := a.Sweeper.Foreground(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d borrow(s) marked overdue\n", len(ids))
			return nil
		})
	},
}

var runJobsCmd = &cobra.Command{
	Use:   "run-jobs",
	Short: "Run background jobs until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Foreground(ctx); err != nil {
				return err
			}
			a.Sweeper.Start()
			fmt.Printf("Overdue sweep scheduled (%s), press Ctrl+C to stop\n", a.Sweeper.Schedule())
			<-ctx.Done()
			return ctx.Err()
		})
	},
}

var watchCmd = &cobra.Command{
	Use:       "watch <items|history|requests>",
	Short:     "Print cached records whenever they change",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"items", "history", "requests"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			switch args[0] {
			case "items":
				live, err := a.Sync.Equipment().Watch(ctx, department)
				if err != nil {
					return err
				}
				return follow(ctx, live, printItems)
			case "history":
				live, err := a.Sync.Borrows().WatchHistory(ctx, department)
				if err != nil {
					return err
				}
				return follow(ctx, live, printHistory)
			case "requests":
				live, err := a.Sync.Borrows().WatchRequests(ctx, department)
				if err != nil {
					return err
				}
				return follow(ctx, live, printRequests)
			}
			return errs.Validation("unknown family %q", args[0])
		})
	},
}

// follow prints every snapshot of live until ctx ends.
func follow[T any](ctx context.Context, live *store.Live[T], render func([]T)) error {
	defer live.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-live.C():
			if !ok {
				return nil
			}
			fmt.Printf("--- %d record(s)\n", len(snap))
			render(snap)
		}
	}
}

func init() {
	watchCmd.Flags().StringVarP(&department, "department", "d", "", "department ID (default: all)")
	rootCmd.AddCommand(sweepCmd, runJobsCmd, watchCmd)
}
