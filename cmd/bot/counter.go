package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"djBot/internal/infrastructure/config"
	sqlitestorage "djBot/internal/infrastructure/persistence/sqlite"
	"djBot/internal/usecase/counters"
)

// newCounterCmd edits counters out of band, e.g. to fix a death count.
func newCounterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Inspect or edit command counters",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print one counter",
			Args:  cobra.ExactArgs(1),
			RunE: withCounters(func(ctx context.Context, cmd *cobra.Command, store *counters.Store, args []string) error {
				n, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <name> <value>",
			Short: "Overwrite one counter",
			Args:  cobra.ExactArgs(2),
			RunE: withCounters(func(ctx context.Context, cmd *cobra.Command, store *counters.Store, args []string) error {
				value, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("counter: invalid value %q", args[1])
				}
				if err := store.Set(ctx, args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", counters.Normalize(args[0]), value)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every counter",
			Args:  cobra.NoArgs,
			RunE: withCounters(func(ctx context.Context, cmd *cobra.Command, store *counters.Store, _ []string) error {
				all, err := store.List(ctx)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(all))
				for name := range all {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, all[name])
				}
				return nil
			}),
		},
	)
	return cmd
}

type counterFunc func(ctx context.Context, cmd *cobra.Command, store *counters.Store, args []string) error

func withCounters(fn counterFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := sqlitestorage.NewStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cmd.Context(), cmd, counters.NewStore(db), args)
	}
}
