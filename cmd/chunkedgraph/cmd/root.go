package cmd

import (
	"fmt"
	"os"

	"github.com/jakobtroidl/chunkedgraph/clog"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	mem        bool
	projectID  string
	instanceID string
	table      string

	runtimeCfg config.RuntimeConfig
	logger     *clog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chunkedgraph",
	Short: "Operate a ChunkedGraph proofreading store",
	Long: `chunkedgraph creates and inspects ChunkedGraph stores: versioned,
chunked supervoxel/agglomeration hierarchies backed by Bigtable (or an
in-memory store for local development).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if projectID != "" {
			cfg.Storage.ProjectID = projectID
		}
		if instanceID != "" {
			cfg.Storage.InstanceID = instanceID
		}
		if table != "" {
			cfg.Storage.Table = table
		}
		runtimeCfg = cfg

		log, err := clog.New(cfg.Log.Format, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("chunkedgraph: building logger: %w", err)
		}
		logger = log
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML runtime config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&mem, "mem", false, "Use an in-memory store instead of Bigtable (local development only)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project-id", "", "Bigtable project id (overrides config file)")
	rootCmd.PersistentFlags().StringVar(&instanceID, "instance-id", "", "Bigtable instance id (overrides config file)")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "Bigtable table name, one per graph (overrides config file)")
}
