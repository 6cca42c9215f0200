package cmd

import (
	"context"
	"fmt"

	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/storage/bigtable"
	"github.com/jakobtroidl/chunkedgraph/storage/memstore"
)

// openStore opens the storage.Client named by the resolved runtimeCfg
// (or an in-memory one under --mem) and wraps it as a *graphmodel.Store.
// --mem exists to exercise command wiring without live Bigtable
// credentials; its state does not survive the process, so it is not
// useful across separate create/ingest/inspect invocations.
func openStore(ctx context.Context) (*graphmodel.Store, error) {
	if mem {
		return graphmodel.NewStore(memstore.New()), nil
	}
	if runtimeCfg.Storage.ProjectID == "" || runtimeCfg.Storage.InstanceID == "" || runtimeCfg.Storage.Table == "" {
		return nil, fmt.Errorf("chunkedgraph: --project-id, --instance-id, and --table (or their config file equivalents) are required unless --mem is set")
	}
	client, err := bigtable.Open(ctx, bigtable.Config{
		ProjectID:      runtimeCfg.Storage.ProjectID,
		InstanceID:     runtimeCfg.Storage.InstanceID,
		Table:          runtimeCfg.Storage.Table,
		MaxConcurrency: runtimeCfg.Storage.MaxConcurrency,
		ReadRowChunk:   runtimeCfg.Storage.ReadRowChunk,
	})
	if err != nil {
		return nil, err
	}
	return graphmodel.NewStore(client), nil
}
