package cmd

import (
	"context"
	"fmt"

	"github.com/jakobtroidl/chunkedgraph/ingest"
	"github.com/jakobtroidl/chunkedgraph/parallel"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestDir         string
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk-build the full hierarchy from a directory of chunk files",
	Long: `ingest reads one newline-delimited record file per layer-1 chunk
(see ingest.FileSource) and runs the full layer-by-layer hierarchy
build against the graph's meta record (spec.md §4.4). Intended for
one-time bulk construction, not incremental edits — use the embedding
service's edit.Engine for merges and splits after ingest completes.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	f := ingestCmd.Flags()
	f.StringVar(&ingestDir, "dir", "", "Directory of <x>_<y>_<z>.chunk files (required)")
	f.IntVar(&ingestConcurrency, "concurrency", 0, "Max concurrent per-chunk workers (0 = parallel.DefaultConfig())")
	ingestCmd.MarkFlagRequired("dir")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	meta, err := store.ReadMeta(ctx)
	if err != nil {
		return fmt.Errorf("chunkedgraph: ingest: reading meta (did you run create-graph?): %w", err)
	}

	poolCfg := parallel.DefaultConfig()
	if ingestConcurrency > 0 {
		poolCfg.MaxWorkers = ingestConcurrency
	}

	source := &ingest.FileSource{Dir: ingestDir}
	builder := ingest.NewBuilder(source, store, meta,
		ingest.WithPool(parallel.New(poolCfg)),
		ingest.WithLogger(logger.With(meta.GraphID)),
	)

	logger.Info("ingest starting", zap.String("dir", ingestDir), zap.String("graph_id", meta.GraphID))
	if err := builder.Build(ctx); err != nil {
		return err
	}
	logger.Info("ingest complete", zap.String("graph_id", meta.GraphID))
	fmt.Printf("ingest of %q complete\n", ingestDir)
	return nil
}
