package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"panelfit/adapters/excel"
	"panelfit/adapters/postgres"
	"panelfit/app"
	"panelfit/domain/core"
	"panelfit/internal"
	"panelfit/internal/config"
	"panelfit/internal/pipeline"
	"panelfit/internal/report"
	"panelfit/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "panelfit",
		Short: "Per country and period robust regression over a policy simulation panel",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using system environment variables")
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRegressCmd(),
		newAuditCmd(),
		newShowCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type commonFlags struct {
	configPath string
	sheet      string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from an xlsx input")
}

// load reads configuration and applies the input argument and flags on top.
func (f *commonFlags) load(cmd *cobra.Command, args []string) (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if len(args) > 0 {
		cfg.Input.Path = args[0]
	}
	if cmd.Flags().Changed("sheet") {
		cfg.Input.Sheet = f.sheet
	}
	if cfg.Input.Path == "" {
		return nil, nil, fmt.Errorf("no input file: pass one or set PANELFIT_INPUT_PATH")
	}

	level, err := internal.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, internal.NewLogger(level), nil
}

func newRegressCmd() *cobra.Command {
	var common commonFlags
	var output, diagnostics, influence, policy, databaseURL string
	var workers int
	var noPrune, clamp bool

	cmd := &cobra.Command{
		Use:   "regress [input]",
		Short: "Screen, fit, prune and refit every (country, period) group",
		Long: `Fit OLS models of every output variable on the input variables for each
(country, period) group, after removing gross errors (median ± 10·IQR by
default) and observations with Cook's distance above 4/n.

Input may be .csv, .csv.gz, .csv.zst or .xlsx. Results are sorted by
country, period and output variable.

Example: panelfit regress data/constants.csv --output results.csv --workers 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := common.load(cmd, args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Output.ResultsPath = output
			}
			if flags.Changed("diagnostics") {
				cfg.Output.DiagnosticsPath = diagnostics
			}
			if flags.Changed("influence") {
				cfg.Output.InfluencePath = influence
			}
			if flags.Changed("policy") {
				cfg.Screen.Policy = policy
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("no-prune") {
				cfg.Influence.Prune = !noPrune
			}
			if flags.Changed("clamp-r2") {
				cfg.Output.ClampRSquared = clamp
			}
			if flags.Changed("database-url") {
				cfg.Database.URL = databaseURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runRegress(cmd.Context(), cfg, logger)
		},
	}

	common.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Result table path (.csv, .csv.gz, .csv.zst, .xlsx)")
	cmd.Flags().StringVar(&diagnostics, "diagnostics", "", "Skipped-unit table path; empty disables it")
	cmd.Flags().StringVar(&influence, "influence", "", "Cook's distance table path")
	cmd.Flags().StringVar(&policy, "policy", "", "Outlier bound policy: median_iqr, tukey or none")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Groups processed concurrently (0 = all CPUs)")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "Skip Cook's distance pruning")
	cmd.Flags().BoolVar(&clamp, "clamp-r2", false, "Report negative R² as 0 in written results")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Also store the run in PostgreSQL")

	return cmd
}

func runRegress(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	pc, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	reader := excel.NewPanelReader(excel.ReaderConfig{
		FilePath:      cfg.Input.Path,
		Sheet:         cfg.Input.Sheet,
		Schema:        pc.Schema,
		DropNonFinite: cfg.Input.DropNonFinite,
	}, logger)

	runner, err := pipeline.NewRunner(pc, pipeline.WithObserver(pipeline.NewLogObserver(logger)))
	if err != nil {
		return err
	}

	stores := []ports.RunStore{excel.NewFileStore(cfg.Output.ResultsPath, cfg.Output.DiagnosticsPath, logger)}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		stores = append(stores, postgres.NewRunRepository(db))
	}

	service := app.NewRegressionService(reader, runner, logger, stores...).
		WithClampedRSquared(cfg.Output.ClampRSquared)
	result, err := service.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Output.InfluencePath != "" {
		rows := report.InfluenceRows(result.Output.Influence)
		if err := excel.WriteTable(cfg.Output.InfluencePath, "influence", report.InfluenceHeader(), rows); err != nil {
			return err
		}
		logger.Info("wrote %d Cook's distances to %s", len(rows), cfg.Output.InfluencePath)
	}

	fmt.Printf("run %s: %d records, %d skipped units, fingerprint %s\n",
		result.RunID, len(result.Written), len(result.Output.Diagnostics), result.Fingerprint)
	return nil
}

func newAuditCmd() *cobra.Command {
	var common commonFlags
	var output string

	cmd := &cobra.Command{
		Use:   "audit [input]",
		Short: "Count NaN, Inf, zero and -100 values per group and output variable",
		Long: `Scan the raw panel, before any cleaning, and count irregular values of
each output variable within every (country, period) group.

Example: panelfit audit data/constants.csv --output irregular_results.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := common.load(cmd, args)
			if err != nil {
				return err
			}
			schema := cfg.Schema()

			reader := excel.NewPanelReader(excel.ReaderConfig{
				FilePath: cfg.Input.Path,
				Sheet:    cfg.Input.Sheet,
				Schema:   schema,
			}, logger)
			table, err := reader.ReadPanel(cmd.Context())
			if err != nil {
				return err
			}

			counts, err := report.Audit(table, schema.Outputs)
			if err != nil {
				return err
			}
			rows := make([][]string, len(counts))
			irregular := 0
			for i, c := range counts {
				rows[i] = c.Row()
				irregular += c.Irregular()
			}
			if err := excel.WriteTable(output, "irregular", report.AuditHeader(), rows); err != nil {
				return err
			}
			logger.Info("audited %d rows: %d irregular values across %d group variables, written to %s",
				table.Len(), irregular, len(counts), output)
			return nil
		},
	}

	common.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "irregular_results.csv", "Audit table path")

	return cmd
}

func newShowCmd() *cobra.Command {
	var configPath, databaseURL, output, diagnostics string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Export a stored run from PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("database-url") {
				cfg.Database.URL = databaseURL
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("no database: pass --database-url or set PANELFIT_DATABASE_URL")
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			repo := postgres.NewRunRepository(db)

			records, err := repo.ListResults(ctx, runID)
			if err != nil {
				return err
			}
			diags, err := repo.ListDiagnostics(ctx, runID)
			if err != nil {
				return err
			}
			store := excel.NewFileStore(output, diagnostics, nil)
			if err := store.WriteResults(ctx, runID, cfg.Schema(), records); err != nil {
				return err
			}
			if err := store.WriteDiagnostics(ctx, runID, diags); err != nil {
				return err
			}
			fmt.Printf("run %s: %d records, %d skipped units\n", runID, len(records), len(diags))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL")
	cmd.Flags().StringVarP(&output, "output", "o", "run_results.csv", "Result table path")
	cmd.Flags().StringVar(&diagnostics, "diagnostics", "", "Skipped-unit table path; empty disables it")

	return cmd
}
