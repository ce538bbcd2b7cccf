package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"boardcore/internal/archive"
	"boardcore/internal/blob"
	"boardcore/internal/transport"
)

func newArchiveCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export and inspect point-in-time board archives",
	}
	cmd.PersistentFlags().StringVar(&key, "key", "main", "archive key the exports are grouped under")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the server collection to the configured archive store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			arch, err := a.archiver(ctx)
			if err != nil {
				return err
			}
			collection, err := transport.NewHTTP(a.cfg.Server.URL, nil).Fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch categories: %w", err)
			}
			entry, err := arch.Export(ctx, key, collection)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "exported %d categories to %s\n", len(collection), entry.Object)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List exports stored under --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			arch, err := a.archiver(ctx)
			if err != nil {
				return err
			}
			entries, err := arch.List(ctx, key)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXPORTED\tSIZE\tOBJECT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", e.ExportedAt.Format(time.RFC3339), e.Size, e.Object)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show [OBJECT]",
		Short: "Print an export, the latest under --key by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			arch, err := a.archiver(ctx)
			if err != nil {
				return err
			}
			var doc archive.Document
			if len(args) == 1 {
				doc, err = arch.Load(ctx, args[0])
			} else {
				doc, err = arch.Latest(ctx, key)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.AddCommand(export, list, show)
	return cmd
}

func (a *app) archiver(ctx context.Context) (*archive.Archiver, error) {
	store, err := blob.Open(ctx, a.cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	return archive.New(store, archive.WithLogger(a.logger)), nil
}
