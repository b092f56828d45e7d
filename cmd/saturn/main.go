package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saturn/internal/config"
	"saturn/internal/logging"
	"saturn/internal/ontology"
	"saturn/internal/reasoner"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration
	workers    int
	policy     string
	dbPath     string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "saturn - concurrent consequence-based EL reasoner",
	Long: `saturn classifies EL ontologies by saturation: every entailed
subsumption between classes and every type of every individual is derived
by a pool of workers, then reduced to a taxonomy.

Ontologies are YAML files of normalized axioms.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(logging.Options{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Categories: cfg.Logging.Categories,
			OutputPath: cfg.Logging.File,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Zap().With(zap.String("category", string(logging.CategoryCLI)))
		logging.Boot("saturn %s: %d workers, chain policy %s", cfg.Version, cfg.GetWorkers(), cfg.Saturation.ChainPolicy)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Saturation.Timeout = timeout.String()
	}
	if flags.Changed("workers") {
		cfg.Saturation.Workers = workers
	}
	if flags.Changed("chain-policy") {
		cfg.Saturation.ChainPolicy = policy
	}
	if flags.Changed("db") {
		cfg.Store.DatabasePath = dbPath
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "saturn.yaml", "Configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Saturation timeout (overrides saturation.timeout)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", 0, "Worker goroutines (overrides saturation.workers)")
	rootCmd.PersistentFlags().StringVar(&policy, "chain-policy", "", "Property chain policy: direct or told_super")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Snapshot database (overrides store.database_path)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadReasoner reads an ontology file into a fresh reasoner. Axioms the
// index rejects are logged and skipped.
func loadReasoner(path string, opts ...reasoner.Option) (*reasoner.Reasoner, *ontology.Ontology, error) {
	onto, err := ontology.Load(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := reasoner.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := r.Load(onto.Axioms); err != nil {
		logger.Warn("some axioms were skipped", zap.String("ontology", path), zap.Error(err))
	}
	return r, onto, nil
}
