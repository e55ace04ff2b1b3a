package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/audit"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var filter audit.Filter
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail of checks, commits and deletions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Audit == "" {
				return errors.New("no audit trail configured (set audit in the config or ARGOS_AUDIT)")
			}
			trail, err := audit.Open(cfg.Audit, audit.WithLogger(ctx.logger()))
			if err != nil {
				return err
			}
			defer trail.Close()

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := trail.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no audit entries")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"When", "Action", "Via", "Status", "ms", "Parameters", "Error"})
			for _, e := range entries {
				tw.AppendRow(table.Row{
					e.Time().Local().Format("2006-01-02 15:04:05"),
					e.Action, e.Transport, e.Status, e.DurationMs,
					text.Trim(e.Parameters, 60), e.Error,
				})
			}
			tw.SetColumnConfigs([]table.ColumnConfig{{Number: 5, Align: text.AlignRight}})
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return err
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "Only this action (check, commit, delete_method)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this (e.g. 24h)")
	return cmd
}
