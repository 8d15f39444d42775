package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/config"
	"github.com/spf13/cobra"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider-id]",
		Short: "List the models a provider offers",
		Long:  "List the models a provider offers. Without an argument, the configured provider ids are printed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			registry := a.Registry()

			if len(args) == 0 {
				ids := make([]string, 0, len(registry))
				for id := range registry {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(out, "%s\t%s\t(default model: %s)\n", id, config.GetProviderDisplayName(id), orNone(registry[id].GetModel()))
				}
				return nil
			}

			id := strings.ToLower(args[0])
			p, ok := registry[id]
			if !ok {
				return errors.Errorf("provider %q is not configured", args[0])
			}

			models := p.ListModels(cmd.Context())
			if len(models) == 0 {
				fmt.Fprintln(out, "No models available")
				return nil
			}
			for _, m := range models {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}
}

func newPersonasCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the personas in the persona file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.Personas()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Personas from %s\n\n", store.Path())
			for _, p := range store.All() {
				fmt.Fprintf(out, "%s (%d, %s)\n", p.Name, p.Age, p.Gender)
				fmt.Fprintf(out, "  %s\n", p.Personality)
				if p.HasFallback() {
					fmt.Fprintf(out, "  fallback: %s:%s\n", p.FallbackProvider, p.FallbackModel)
				}
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
