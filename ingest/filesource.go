package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// FileSource reads one newline-delimited record file per layer-1
// chunk from Dir, named "<x>_<y>_<z>.chunk" (spec.md §4.4 "(added) the
// external per-chunk edge source is modeled as a ChunkSource interface
// ... one file-backed implementation reading newline-delimited
// records"). Each line is one of:
//
//	E in    <uLocal> <vLocal> <affinity> <area>
//	E cross <uLocal> <vChunkX> <vChunkY> <vChunkZ> <vLocal> <affinity> <area>
//	E fuse  <uLocal> <vChunkX> <vChunkY> <vChunkZ> <vLocal>
//	A <local> <component>
//
// "cross" here is the between-chunk category of spec.md §3 (finite
// weight, face-adjacent); "fuse" is the inseparable cross-chunk
// category (+inf affinity). Blank lines and lines starting with '#'
// are skipped.
type FileSource struct {
	Dir string
}

func chunkFilePath(dir string, c chunkid.Coord) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%d_%d.chunk", c.X, c.Y, c.Z))
}

// Chunks enumerates every "<x>_<y>_<z>.chunk" file under Dir.
func (f *FileSource) Chunks(ctx context.Context) ([]chunkid.Coord, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: read chunk directory", err)
	}
	var coords []chunkid.Coord
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".chunk")
		if name == e.Name() {
			continue // not a .chunk file
		}
		parts := strings.Split(name, "_")
		if len(parts) != 3 {
			continue
		}
		x, errX := strconv.ParseInt(parts[0], 10, 64)
		y, errY := strconv.ParseInt(parts[1], 10, 64)
		z, errZ := strconv.ParseInt(parts[2], 10, 64)
		if errX != nil || errY != nil || errZ != nil {
			continue
		}
		coords = append(coords, chunkid.Coord{X: x, Y: y, Z: z})
	}
	return coords, nil
}

func (f *FileSource) InChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	recs, err := f.readChunkFile(c)
	if err != nil {
		return nil, err
	}
	return recs.in, nil
}

func (f *FileSource) BetweenChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	recs, err := f.readChunkFile(c)
	if err != nil {
		return nil, err
	}
	return recs.between, nil
}

func (f *FileSource) CrossChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	recs, err := f.readChunkFile(c)
	if err != nil {
		return nil, err
	}
	return recs.cross, nil
}

func (f *FileSource) AgglomerationMap(ctx context.Context, c chunkid.Coord) (map[LocalID]uint64, error) {
	recs, err := f.readChunkFile(c)
	if err != nil {
		return nil, err
	}
	return recs.agg, nil
}

type chunkRecords struct {
	in, between, cross []RawEdge
	agg                map[LocalID]uint64
}

func (f *FileSource) readChunkFile(c chunkid.Coord) (chunkRecords, error) {
	out := chunkRecords{agg: make(map[LocalID]uint64)}
	path := chunkFilePath(f.Dir, c)
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return out, nil // a chunk with no edges file has no edges
	}
	if err != nil {
		return chunkRecords{}, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: open chunk file "+path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var parseErr error
		switch fields[0] {
		case "A":
			parseErr = parseAgglomerationLine(fields, out.agg)
		case "E":
			parseErr = parseEdgeLine(fields, c, &out)
		default:
			parseErr = fmt.Errorf("unrecognized record kind %q", fields[0])
		}
		if parseErr != nil {
			return chunkRecords{}, chunkederr.Wrap(chunkederr.InvalidInput, fmt.Sprintf("ingest: %s:%d", path, lineNo), parseErr)
		}
	}
	if err := scanner.Err(); err != nil {
		return chunkRecords{}, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: scan chunk file "+path, err)
	}
	return out, nil
}

func parseAgglomerationLine(fields []string, agg map[LocalID]uint64) error {
	if len(fields) != 3 {
		return fmt.Errorf("want 3 fields for 'A' record, got %d", len(fields))
	}
	local, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return err
	}
	component, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return err
	}
	agg[LocalID(local)] = component
	return nil
}

func parseEdgeLine(fields []string, chunk chunkid.Coord, out *chunkRecords) error {
	if len(fields) < 2 {
		return fmt.Errorf("missing edge kind")
	}
	switch fields[1] {
	case "in":
		if len(fields) != 6 {
			return fmt.Errorf("want 6 fields for 'E in' record, got %d", len(fields))
		}
		u, v, affinity, area, err := parseLocalEdgeTail(fields[2:])
		if err != nil {
			return err
		}
		out.in = append(out.in, RawEdge{AChunk: chunk, ALocal: u, BChunk: chunk, BLocal: v, Affinity: affinity, Area: area})
	case "cross":
		if len(fields) != 9 {
			return fmt.Errorf("want 9 fields for 'E cross' record, got %d", len(fields))
		}
		edge, err := parseRemoteEdge(fields[2:], chunk, true)
		if err != nil {
			return err
		}
		out.between = append(out.between, edge)
	case "fuse":
		if len(fields) != 7 {
			return fmt.Errorf("want 7 fields for 'E fuse' record, got %d", len(fields))
		}
		edge, err := parseRemoteEdge(fields[2:], chunk, false)
		if err != nil {
			return err
		}
		out.cross = append(out.cross, edge)
	default:
		return fmt.Errorf("unrecognized edge kind %q", fields[1])
	}
	return nil
}

func parseLocalEdgeTail(fields []string) (u, v LocalID, affinity float64, area int32, err error) {
	uu, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	vv, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	aff, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	ar, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return LocalID(uu), LocalID(vv), aff, int32(ar), nil
}

// parseRemoteEdge parses "<uLocal> <vChunkX> <vChunkY> <vChunkZ> <vLocal> [<affinity> <area>]".
func parseRemoteEdge(fields []string, chunk chunkid.Coord, hasWeight bool) (RawEdge, error) {
	u, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return RawEdge{}, err
	}
	x, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return RawEdge{}, err
	}
	y, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return RawEdge{}, err
	}
	z, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return RawEdge{}, err
	}
	v, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return RawEdge{}, err
	}
	edge := RawEdge{
		AChunk: chunk, ALocal: LocalID(u),
		BChunk: chunkid.Coord{X: x, Y: y, Z: z}, BLocal: LocalID(v),
		Affinity: posInf,
	}
	if hasWeight {
		aff, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return RawEdge{}, err
		}
		area, err := strconv.ParseInt(fields[6], 10, 32)
		if err != nil {
			return RawEdge{}, err
		}
		edge.Affinity = aff
		edge.Area = int32(area)
	}
	return edge, nil
}

var _ ChunkSource = (*FileSource)(nil)
