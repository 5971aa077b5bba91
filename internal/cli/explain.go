package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-ap-reconciler/internal/client"
	"github.com/pesio-ai/be-ap-reconciler/internal/config"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
)

// ExplainCmd prints a stored record and asks for an explanation when missing
func ExplainCmd() *cobra.Command {
	var (
		configPath string
		plain      bool
		write      bool
	)
	cmd := &cobra.Command{
		Use:   "explain <record.json>",
		Short: "Show a reconciliation record with a plain-language explanation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := output.ReadFile(args[0])
			if err != nil {
				return err
			}

			renderer := output.NewRenderer(cmd.OutOrStdout(), plain)
			if !rec.NeedsHuman() || rec.HumanExplanation != nil {
				renderer.Record(rec)
				return nil
			}

			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			if !cfg.Explanation.Enabled {
				renderer.Record(rec)
				fmt.Fprintln(cmd.OutOrStdout(), "Explanation service disabled; set EXPLANATION_ENABLED=true to generate one.")
				return nil
			}

			explainer := client.NewExplanationClient(client.ExplanationConfig{
				BaseURL:     cfg.Explanation.BaseURL,
				APIKey:      cfg.Explanation.APIKey,
				Model:       cfg.Explanation.Model,
				Temperature: cfg.Explanation.Temperature,
				MaxTokens:   cfg.Explanation.MaxTokens,
				Timeout:     cfg.Explanation.Timeout,
			})
			text, err := explainer.Explain(cmd.Context(), rec)
			if err != nil {
				return err
			}
			rec.HumanExplanation = &text
			renderer.Record(rec)

			if write {
				if err := output.WriteFile(args[0], rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("RECONCILER_CONFIG"), "YAML configuration file")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable colors")
	cmd.Flags().BoolVar(&write, "write", false, "Store the explanation back into the record")
	return cmd
}
