package config

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a ChunkedGraphMeta for storage under the fixed
// "meta" row (graphmodel.MetaKey, spec.md §6 "serialized(meta)").
// The GraphID string comes first, then the fixed-width fields, then the
// SkipConnections string, following storage/codec.go's "integers little-endian fixed-width,
// variable-width prefixed by a count" convention.
func (m ChunkedGraphMeta) Encode() []byte {
	b := make([]byte, 0, 128)
	b = appendString(b, m.GraphID)
	b = appendUint64(b, uint64(m.LayerCount))
	b = appendUint64(b, uint64(m.Fanout))
	for _, d := range m.ChunkDims {
		b = appendUint64(b, uint64(d))
	}
	for _, d := range m.GridDims {
		b = appendUint64(b, uint64(d))
	}
	b = appendUint64(b, uint64(m.LayerBits))
	b = appendUint64(b, uint64(m.ChunkBits))
	b = appendUint64(b, uint64(m.SegmentBits))
	for _, r := range m.VoxelResolutionNM {
		b = appendUint64(b, math.Float64bits(r))
	}
	b = appendString(b, string(m.SkipConnections))
	return b
}

// DecodeMeta inverts Encode. The resulting meta is NOT re-validated
// through chunkid.NewLayout — a meta record that round-trips through
// storage was already validated by NewMeta when it was written.
func DecodeMeta(b []byte) (ChunkedGraphMeta, error) {
	var m ChunkedGraphMeta
	var ok bool

	m.GraphID, b, ok = readString(b)
	if !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated graph id")
	}
	var layerCount, fanout uint64
	if layerCount, b, ok = readUint64(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated layer count")
	}
	if fanout, b, ok = readUint64(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated fanout")
	}
	m.LayerCount = int(layerCount)
	m.Fanout = int64(fanout)

	for i := range m.ChunkDims {
		var v uint64
		if v, b, ok = readUint64(b); !ok {
			return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated chunk dims")
		}
		m.ChunkDims[i] = int64(v)
	}
	for i := range m.GridDims {
		var v uint64
		if v, b, ok = readUint64(b); !ok {
			return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated grid dims")
		}
		m.GridDims[i] = int64(v)
	}

	var layerBits, chunkBits, segmentBits uint64
	if layerBits, b, ok = readUint64(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated layer bits")
	}
	if chunkBits, b, ok = readUint64(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated chunk bits")
	}
	if segmentBits, b, ok = readUint64(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated segment bits")
	}
	m.LayerBits = uint(layerBits)
	m.ChunkBits = uint(chunkBits)
	m.SegmentBits = uint(segmentBits)

	for i := range m.VoxelResolutionNM {
		var v uint64
		if v, b, ok = readUint64(b); !ok {
			return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated voxel resolution")
		}
		m.VoxelResolutionNM[i] = math.Float64frombits(v)
	}

	var skip string
	if skip, b, ok = readString(b); !ok {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: truncated skip-connection policy")
	}
	m.SkipConnections = SkipConnectionPolicy(skip)

	if len(b) != 0 {
		return ChunkedGraphMeta{}, fmt.Errorf("config: DecodeMeta: %d trailing bytes", len(b))
	}
	return m, nil
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendString(b []byte, s string) []byte {
	b = appendUint64(b, uint64(len(s)))
	return append(b, s...)
}

func readUint64(b []byte) (v uint64, rest []byte, ok bool) {
	if len(b) < 8 {
		return 0, b, false
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], true
}

func readString(b []byte) (s string, rest []byte, ok bool) {
	n, b, ok := readUint64(b)
	if !ok || uint64(len(b)) < n {
		return "", b, false
	}
	return string(b[:n]), b[n:], true
}
