// Command chunkedgraph operates a ChunkedGraph store: creating a new
// graph's meta record and Bigtable table, running the bulk hierarchy
// ingest over a directory of chunk files, and inspecting nodes for
// debugging (spec.md §6, §4.4). It does not expose merge/split — those
// are edit.Engine calls made by a service that embeds this module, not
// operator commands.
package main

import "github.com/jakobtroidl/chunkedgraph/cmd/chunkedgraph/cmd"

func main() {
	cmd.Execute()
}
