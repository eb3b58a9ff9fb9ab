package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salestax-cli/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached rate tables and postal code datasets",
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download both datasets and store fresh snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		start := time.Now()
		var rateRows, places int

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rows, err := env.Cached.Refresh(gctx)
			if err != nil {
				return eris.Wrap(err, "refresh rate table")
			}
			if len(rows) == 0 {
				return eris.Wrapf(errEmptyRefresh, "rate table from %s", env.Cached.Name())
			}
			rateRows = len(rows)
			return nil
		})
		g.Go(func() error {
			n, err := env.Geocoder.Refresh(gctx)
			if err != nil {
				return eris.Wrap(err, "refresh postal codes")
			}
			places = n
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("cache refreshed",
			zap.Int("rate_rows", rateRows),
			zap.Int("postal_codes", places),
			zap.Duration("elapsed", time.Since(start)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %d tax rates and %d postal codes.\n", rateRows, places)
		return nil
	},
}

var errEmptyRefresh = eris.New("source returned no rows")

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		n, err := st.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d snapshots.\n", n)
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		snaps, err := st.ListSnapshots(ctx)
		if err != nil {
			return err
		}
		writeSnapshots(cmd.OutOrStdout(), snaps)
		return nil
	},
}

func writeSnapshots(w io.Writer, snaps []store.Snapshot) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Kind", "Source", "Rows", "Fetched"})
	for _, s := range snaps {
		t.AppendRow(table.Row{s.Kind, s.Source, s.Rows, s.FetchedAt.Local().Format(time.RFC3339)})
	}
	t.Render()
}

func init() {
	cacheCmd.AddCommand(cacheRefreshCmd, cacheClearCmd, cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}
