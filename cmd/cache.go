package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent content cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cached content",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := pruneCache(ctx, st)
		if err != nil {
			return err
		}
		writePruned(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

type contentPruner interface {
	DeleteExpiredContent(ctx context.Context) (int, error)
}

func pruneCache(ctx context.Context, p contentPruner) (int, error) {
	n, err := p.DeleteExpiredContent(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cache prune")
	}
	return n, nil
}

func writePruned(w io.Writer, n int) {
	if n == 1 {
		_, _ = fmt.Fprintln(w, "Pruned 1 expired cache entry.")
		return
	}
	_, _ = fmt.Fprintf(w, "Pruned %d expired cache entries.\n", n)
}
