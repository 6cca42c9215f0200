package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <node-id>",
	Short: "Print a node's parent, children, cross-chunk edges, and root lineage",
	Long: `inspect decodes a packed node id's (layer, chunk, segment) fields and
prints its current parent, children, per-layer cross-chunk edges, and
FormerRoots/NewRoots lineage — read-only, for debugging a graph built
by ingest or edited by edit.Engine.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("chunkedgraph: inspect: %q is not a valid node id: %w", args[0], err)
	}

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	meta, err := store.ReadMeta(ctx)
	if err != nil {
		return fmt.Errorf("chunkedgraph: inspect: reading meta: %w", err)
	}
	lay := meta.Layout()

	layer := lay.Layer(id)
	chunk := lay.ChunkCoord(id)
	fmt.Printf("id:        %d\n", id)
	fmt.Printf("layer:     %d\n", layer)
	fmt.Printf("chunk:     (%d, %d, %d)\n", chunk.X, chunk.Y, chunk.Z)
	fmt.Printf("segment:   %d\n", lay.Segment(id))

	parent, err := store.GetParent(ctx, id, time.Time{})
	if err != nil {
		fmt.Printf("parent:    (none — %v)\n", err)
	} else {
		fmt.Printf("parent:    %d\n", parent)
	}

	children, err := store.GetChildren(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("children:  %v\n", children)

	if layer < meta.LayerCount {
		edges, err := store.GetCrossChunkEdges(ctx, id, layer)
		if err != nil {
			return err
		}
		fmt.Printf("cross-chunk edges (layer %d): %v\n", layer, edges)
	}

	root, err := store.GetRoot(ctx, id, time.Time{}, meta.LayerCount)
	if err == nil {
		fmt.Printf("current root: %d\n", root)
	}

	former, err := store.GetFormerRoots(ctx, id)
	if err == nil && len(former) > 0 {
		fmt.Printf("former roots (nodes this id superseded): %v\n", former)
	}
	newer, err := store.GetNewRoots(ctx, id)
	if err == nil && len(newer) > 0 {
		fmt.Printf("new roots (this id was superseded by): %v\n", newer)
	}
	return nil
}
