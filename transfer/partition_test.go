package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		partSize  int64
		wantSizes []int64
	}{
		{"exactly one part", 1048576, 1048576, []int64{1048576}},
		{"one byte over", 1048577, 1048576, []int64{1048576, 1}},
		{"remainder", 10, 3, []int64{3, 3, 3, 1}},
		{"even split", 9, 3, []int64{3, 3, 3}},
		{"smaller than part", 5, 1048576, []int64{5}},
		{"empty file", 0, 1048576, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Partition(tt.fileSize, tt.partSize)
			require.NoError(t, err)
			require.Len(t, parts, len(tt.wantSizes))

			var offset int64
			for i, p := range parts {
				assert.Equal(t, int32(i+1), p.Number, "parts are numbered from 1")
				assert.Equal(t, offset, p.Offset, "parts are contiguous")
				assert.Equal(t, tt.wantSizes[i], p.Size)
				offset += p.Size
			}
			assert.Equal(t, tt.fileSize, offset, "parts cover the whole file")
		})
	}
}

func TestPartition_Rejects(t *testing.T) {
	_, err := Partition(10, 0)
	assert.Error(t, err)
	_, err = Partition(10, -1)
	assert.Error(t, err)
	_, err = Partition(-1, 10)
	assert.Error(t, err)
}
