package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ochairo/tfpublish/internal/domain-adapters/gateways"
	"github.com/ochairo/tfpublish/internal/domain/entities"
	"github.com/ochairo/tfpublish/internal/domain/services"
)

func newShasumCmd(a *app) *cobra.Command {
	var (
		repoName  string
		version   string
		platform  string
		outputDir string
		verify    bool
	)

	cmd := &cobra.Command{
		Use:   "shasum",
		Short: "Print the manifest digest of a staged platform archive",
		Long: `Read <repo-name>_<version>_SHA256SUMS from --output-dir and print the digest
recorded for <repo-name>_<version>_<os>_<arch>.zip. With --verify the staged
archive is hashed and compared against it.`,
		Example: `  tfpublish shasum --repo-name terraform-provider-widget --version 1.2.0 -p linux_amd64`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := entities.ParsePlatform(platform)
			if err != nil {
				return err
			}

			shasum, err := services.NewChecksumService().ExtractShasum(outputDir, repoName, version, p)
			if err != nil {
				return err
			}

			if verify {
				archive := filepath.Join(outputDir, entities.ArchiveName(repoName, version, p))
				if err := gateways.NewChecksumVerifier().VerifyChecksum(cmd.Context(), archive, shasum); err != nil {
					return err
				}
				a.logger.Info("Archive matches manifest")
			}

			_, _ = fmt.Fprintln(a.stdout, shasum)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&repoName, "repo-name", "", "artifact filename prefix, usually the repository name")
	fs.StringVar(&version, "version", "", "release version without the leading v")
	fs.StringVarP(&platform, "platform", "p", "", "platform as os_arch")
	fs.StringVarP(&outputDir, "output-dir", "o", entities.DefaultOutputDir, "directory the release was staged in")
	fs.BoolVar(&verify, "verify", false, "also hash the staged archive and compare")
	_ = cmd.MarkFlagRequired("repo-name")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}
