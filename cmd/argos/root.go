package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	root := &cobra.Command{
		Use:           "argos",
		Short:         "Learn per-site identity detection methods and check identities against them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (YAML)")
	pf.StringVar(&flags.catalog, "catalog", "", "Method catalog path (.json, or .db for SQLite)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.render, "render", false, "Enable the rendered browser channel")

	root.AddCommand(newLearnCommand(ctx))
	root.AddCommand(newCheckCommand(ctx))
	root.AddCommand(newMethodsCommand(ctx))
	root.AddCommand(newServeCommand(ctx))
	root.AddCommand(newMCPCommand(ctx))
	root.AddCommand(newAuditCommand(ctx))
	return root
}
