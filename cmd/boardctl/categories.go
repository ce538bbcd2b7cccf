package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"boardcore/internal/client"
	"boardcore/internal/notify"
	"boardcore/internal/transport"
	"boardcore/pkg/domain"
)

func newCategoriesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List and edit board categories",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print the resulting collection as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the categories in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBoard(cmd.Context(), asJSON, func(context.Context, *client.Board) error { return nil })
		},
	}

	var create domain.CreateCategoryRequest
	createCmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Append a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.Title = args[0]
			return a.withBoard(cmd.Context(), asJSON, func(ctx context.Context, b *client.Board) error {
				_, err := b.Categories().Create().Run(ctx, create)
				return err
			})
		},
	}
	createCmd.Flags().StringVar(&create.Description, "description", "", "category description")
	createCmd.Flags().StringVar(&create.Color, "color", "", "hex color, e.g. #1f6feb")
	createCmd.Flags().StringSliceVar(&create.Labels, "label", nil, "label (repeatable)")

	var (
		title, description, color string
		labels                    []string
	)
	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.UpdateCategoryRequest{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("color") {
				req.Color = &color
			}
			if flags.Changed("label") {
				req.Labels = &labels
			}
			if req.Title == nil && req.Description == nil && req.Color == nil && req.Labels == nil {
				return fmt.Errorf("nothing to update: pass at least one of --title, --description, --color, --label")
			}
			return a.withBoard(cmd.Context(), asJSON, func(ctx context.Context, b *client.Board) error {
				_, err := b.Categories().Update().Run(ctx, req)
				return err
			})
		},
	}
	updateCmd.Flags().StringVar(&title, "title", "", "new title")
	updateCmd.Flags().StringVar(&description, "description", "", "new description")
	updateCmd.Flags().StringVar(&color, "color", "", "new hex color")
	updateCmd.Flags().StringSliceVar(&labels, "label", nil, "replacement labels (repeatable)")

	moveCmd := &cobra.Command{
		Use:   "move ID POSITION",
		Short: "Move a category to a zero based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position %q: %w", args[1], err)
			}
			req := domain.RepositionCategoryRequest{ID: args[0], Position: pos}
			return a.withBoard(cmd.Context(), asJSON, func(ctx context.Context, b *client.Board) error {
				_, err := b.Categories().Reposition().Run(ctx, req)
				return err
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.DeleteCategoryRequest{ID: args[0]}
			return a.withBoard(cmd.Context(), asJSON, func(ctx context.Context, b *client.Board) error {
				_, err := b.Categories().Delete().Run(ctx, req)
				return err
			})
		},
	}

	cmd.AddCommand(list, createCmd, updateCmd, moveCmd, deleteCmd)
	return cmd
}

// withBoard loads the board from the server, runs fn, waits for settlement
// and the reconciling refetch, then prints notifications and the collection.
// The collection is printed even when fn fails so the rolled back state is
// visible.
func (a *app) withBoard(parent context.Context, asJSON bool, fn func(context.Context, *client.Board) error) error {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	tracer, stopTracing, err := a.tracer("boardctl")
	if err != nil {
		return err
	}
	defer a.stopTracing(stopTracing)

	httpT := transport.NewHTTP(a.cfg.Server.URL, nil)
	notes := notify.NewBuffer(16)
	b, err := client.New(httpT, httpT.Fetch, notify.Multi{notify.Log{Logger: a.logger}, notes},
		client.WithLogger(a.logger),
		client.WithRefreshTimeout(a.cfg.RefreshTimeout),
		client.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	if _, err := b.Load(ctx); err != nil {
		return fmt.Errorf("load categories from %s: %w", a.cfg.Server.URL, err)
	}
	runErr := fn(ctx, b)
	if err := b.Settle(ctx); err != nil {
		return fmt.Errorf("wait for settlement: %w", err)
	}
	for _, m := range notes.Messages() {
		fmt.Fprintf(a.stderr, "[%s] %s\n", m.Level, m.Text)
	}
	collection, err := b.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload categories: %w", err)
	}
	if err := a.printCollection(collection, asJSON); err != nil {
		return err
	}
	return runErr
}

func (a *app) printCollection(c domain.Collection, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tTITLE\tCOLOR\tLABELS")
	for i, cat := range c {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, cat.ID, cat.Title, cat.Color, strings.Join(cat.Labels, ","))
	}
	return tw.Flush()
}
