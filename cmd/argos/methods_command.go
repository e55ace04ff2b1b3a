package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/presence"
)

func newMethodsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "Inspect and prune the method catalog",
	}
	cmd.AddCommand(newMethodsListCommand(ctx))
	cmd.AddCommand(newMethodsDeleteCommand(ctx))
	return cmd
}

func newMethodsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [site-prefix]",
		Short: "List catalogued methods, optionally for sites starting with a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			entries, err := app.svc.Methods(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no methods")
				return nil
			}
			return presence.RenderReview(cmd.OutOrStdout(), entries)
		},
	}
}

func newMethodsDeleteCommand(ctx *commandContext) *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete methods by ID, or every method of the sites matching --site",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (site == "") == (len(args) == 0) {
				return errors.New("give method IDs or --site, not both")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()

			start := time.Now()
			var n int
			if site != "" {
				n, err = app.svc.DeleteSite(cmd.Context(), site)
			} else {
				n, err = app.svc.DeleteMethods(cmd.Context(), ids)
			}
			app.record("delete_method", map[string]any{"ids": ids, "site": site}, map[string]int{"deleted": n}, err, start)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d method(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "Delete every method of the sites starting with this prefix")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range splitList(args) {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid method id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
