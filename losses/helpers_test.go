package losses

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larinfill/larinfill/config"
	"github.com/larinfill/larinfill/sparse"
)

// voxel is a test shorthand for one coordinate with a feature vector.
type voxel struct {
	c sparse.Coord
	f []float64
}

func mustTensor(t *testing.T, voxels ...voxel) *sparse.Tensor {
	t.Helper()
	coords := make([]sparse.Coord, len(voxels))
	feats := make([][]float64, len(voxels))
	for i, v := range voxels {
		coords[i] = v.c
		feats[i] = v.f
	}
	ten, err := sparse.New(coords, feats)
	require.NoError(t, err)
	return ten
}

// inVoxel builds an input-tensor voxel: adc value plus the trailing infill
// mask flag.
func inVoxel(b, x, y, z int, adc, mask float64) voxel {
	return voxel{c: sparse.Coord{Batch: b, X: x, Y: y, Z: z}, f: []float64{adc, mask}}
}

// outVoxel builds a single-channel prediction/target voxel.
func outVoxel(b, x, y, z int, adc float64) voxel {
	return voxel{c: sparse.Coord{Batch: b, X: x, Y: y, Z: z}, f: []float64{adc}}
}

func emptyGaps(batchSize int) *BatchGaps {
	return &BatchGaps{
		MaskX: make([][]int, batchSize),
		MaskZ: make([][]int, batchSize),
	}
}

func pixelWiseConf(lossFunc string) *config.Config {
	return &config.Config{LossFunc: lossFunc}
}
