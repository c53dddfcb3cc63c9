package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/tfpublish/internal/domain-adapters/gateways"
	"github.com/ochairo/tfpublish/internal/domain/entities"
)

func newProviderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage private registry providers",
	}
	cmd.AddCommand(newProviderCreateCmd(a))
	return cmd
}

func newProviderCreateCmd(a *app) *cobra.Command {
	var reg entities.RegistryConfig

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a provider in an organization's private registry",
		Example: `  TFE_TOKEN=... tfpublish provider create --organization acme --namespace acme --name widget`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.Token = a.getenv(envTFEToken)
			if reg.Token == "" {
				return fmt.Errorf("%s is not set", envTFEToken)
			}
			if reg.Address == "" {
				reg.Address = entities.DefaultTFEAddress
			}
			reg.URL = reg.ProviderCollectionURL()

			registry, err := gateways.NewHTTPRegistryGateway(a.httpClient(entities.DefaultTimeout), reg, a.logger)
			if err != nil {
				return err
			}

			provider := &entities.RegistryProvider{Name: reg.Provider, Namespace: reg.Namespace}
			if err := registry.CreateProvider(cmd.Context(), reg.Organization, provider); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(a.stdout, "Created provider %s/%s\n", reg.Namespace, reg.Provider)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&reg.Organization, "organization", "", "registry organization")
	fs.StringVar(&reg.Namespace, "namespace", "", "provider namespace")
	fs.StringVar(&reg.Provider, "name", "", "provider name")
	fs.StringVar(&reg.Address, "address", entities.DefaultTFEAddress, "registry API host")
	_ = cmd.MarkFlagRequired("organization")
	_ = cmd.MarkFlagRequired("namespace")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
