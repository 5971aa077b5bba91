package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-ap-reconciler/internal/app"
	"github.com/pesio-ai/be-ap-reconciler/internal/config"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/service"
)

type runFlags struct {
	configPath  string
	catalogPath string
	invoicesDir string
	outDir      string
	concurrency int
	plain       bool
	logLevel    string
}

// RunCmd reconciles every invoice document in a directory
func RunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile all invoices in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{
				Level:       cfg.Service.LogLevel,
				Environment: cfg.Service.Environment,
				ServiceName: cfg.Service.Name,
				Version:     cfg.Service.Version,
				Output:      cmd.ErrOrStderr(),
			})

			paths, err := service.ListDocuments(flags.invoicesDir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No invoices found in %s\n", flags.invoicesDir)
				return nil
			}

			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Batch.ReconcileAll(cmd.Context(), service.RequestsFor(paths))
			if err != nil {
				return err
			}

			renderer := output.NewRenderer(cmd.OutOrStdout(), flags.plain)
			for _, rec := range result.Records {
				renderer.Record(rec)
				if path, ok := application.Files.PathOf(rec.RunID); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved:    %s\n", path)
				}
			}
			renderer.Summary(result.Summary.AutoApproved, result.Summary.NeedsReview)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", os.Getenv("RECONCILER_CONFIG"), "YAML configuration file")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "Purchase order catalog JSON (overrides config)")
	cmd.Flags().StringVar(&flags.invoicesDir, "invoices", "invoices", "Directory of invoice documents (.pdf, .json)")
	cmd.Flags().StringVar(&flags.outDir, "out", "", "Output directory for records (overrides config)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "Invoices reconciled in parallel (overrides config)")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Disable colors")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config)")
	return cmd
}

func loadConfig(flags runFlags) (*config.Config, error) {
	cfg, err := config.LoadFile(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.catalogPath != "" {
		cfg.Catalog.Source = "file"
		cfg.Catalog.Path = flags.catalogPath
	}
	if flags.outDir != "" {
		cfg.Batch.OutputDir = flags.outDir
	}
	if flags.concurrency > 0 {
		cfg.Batch.Concurrency = flags.concurrency
	}
	if flags.logLevel != "" {
		cfg.Service.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
