package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/presence"
	"github.com/hazyhaar/argos/safe"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var saveReport bool

	cmd := &cobra.Command{
		Use:   "check <identity>",
		Short: "Check whether an identity exists on every catalogued site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()

			start := time.Now()
			rep, err := app.svc.Check(cmd.Context(), args[0])
			var summary any
			if rep != nil {
				summary = map[string]any{"run_id": rep.RunID, "sites": len(rep.Sites), "found": rep.Found()}
			}
			app.record("check", map[string]string{"identity": args[0]}, summary, err, start)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else if err := rep.RenderTable(out); err != nil {
				return err
			}

			if saveReport {
				path, err := writeReport(app.cfg.ReportDir, rep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "report saved to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON even on a terminal")
	cmd.Flags().BoolVar(&saveReport, "save-report", true, "Write the text report to the report directory")
	return cmd
}

func writeReport(dir string, rep *presence.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	path, err := safe.SafePath(dir, presence.ReportFileName(rep.Identity, rep.StartedAt))
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := rep.WriteText(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
