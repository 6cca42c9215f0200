package graphmodel

import (
	"encoding/binary"
	"fmt"

	"github.com/jakobtroidl/chunkedgraph/storage"
)

// appendString writes a length-prefixed UTF-8 string, matching the
// count-prefix convention storage/codec.go uses for numeric slices.
func appendString(b []byte, s string) []byte {
	prefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(prefix, uint32(len(s)))
	b = append(b, prefix...)
	return append(b, s...)
}

// readString reads one length-prefixed string and returns it along
// with the remaining bytes.
func readString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("graphmodel: readString: truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, fmt.Errorf("graphmodel: readString: want %d bytes, got %d", n, len(b))
	}
	return string(b[:n]), b[n:], nil
}

// readUint64Slice reads one count-prefixed []uint64 (storage/codec.go
// layout) and returns it along with the remaining bytes.
func readUint64Slice(b []byte) ([]uint64, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("graphmodel: readUint64Slice: truncated count prefix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	want := 4 + 8*int(n)
	if len(b) < want {
		return nil, nil, fmt.Errorf("graphmodel: readUint64Slice: want %d bytes, got %d", want, len(b))
	}
	vs, err := storage.DecodeUint64Slice(b[:want])
	if err != nil {
		return nil, nil, err
	}
	return vs, b[want:], nil
}
