package transfer

import (
	"errors"
	"fmt"
)

// DefaultPartSize is the part size used when none is configured.
const DefaultPartSize int64 = 1048576

// Part is one contiguous byte range of the source file.
type Part struct {
	Number int32
	Offset int64
	Size   int64
}

// Partition splits fileSize bytes into ceil(fileSize/partSize) parts
// numbered from 1. Every part but the last is exactly partSize bytes.
// A zero-byte file yields no parts.
func Partition(fileSize, partSize int64) ([]Part, error) {
	if partSize <= 0 {
		return nil, fmt.Errorf("part size must be > 0, got %d", partSize)
	}
	if fileSize < 0 {
		return nil, errors.New("file size must be >= 0")
	}

	n := (fileSize + partSize - 1) / partSize
	parts := make([]Part, 0, n)
	for i := int64(0); i < n; i++ {
		off := i * partSize
		parts = append(parts, Part{
			Number: int32(i + 1),
			Offset: off,
			Size:   min(partSize, fileSize-off),
		})
	}
	return parts, nil
}
