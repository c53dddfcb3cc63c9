package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	f := &configFlags{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the latest release assets without publishing",
		Long: `Resolve the latest release of --repo and stage the archives of every
--platform, the checksum manifest and its signature in --output-dir.
Nothing is sent to the registry.`,
		Example: `  tfpublish fetch --repo acme/terraform-provider-widget -p linux_amd64 -o dist`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := a.loadConfig(ctx, cmd, f)
			if err != nil {
				return err
			}
			if err := validateSource(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			orch, err := a.newOrchestrator(cfg, false)
			if err != nil {
				return err
			}

			stage, err := orch.Stage(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(a.stdout, "Release %s (version %s)\n", stage.Release.TagName, stage.Selection.Version)
			for _, s := range stage.Staged {
				_, _ = fmt.Fprintf(a.stdout, "  %s\n", s.Path)
			}
			for _, name := range stage.Selection.Missing {
				_, _ = fmt.Fprintf(a.stdout, "  missing: %s\n", name)
			}
			return nil
		},
	}

	f.addSourceFlags(cmd)
	return cmd
}
