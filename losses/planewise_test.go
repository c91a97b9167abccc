package losses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larinfill/larinfill/config"
)

func planeWiseConf() *config.Config {
	return &config.Config{LossFunc: "PlaneWise_L1Loss", AdcThreshold: 2.0}
}

func TestNewPlaneWise(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		_, err := NewPlaneWise(planeWiseConf())
		require.NoError(t, err)
	})

	t.Run("Unknown criterion", func(t *testing.T) {
		_, err := NewPlaneWise(&config.Config{LossFunc: "PlaneWise_MSELoss"})
		require.ErrorIs(t, err, ErrUnknownLossFunc)
	})

	t.Run("Npixel weight without threshold", func(t *testing.T) {
		conf := &config.Config{
			LossFunc:                "PlaneWise_L1Loss",
			LossZPlanesNpixelWeight: 1.0,
		}
		_, err := NewPlaneWise(conf)
		require.ErrorIs(t, err, ErrThresholdRequired)
	})
}

func TestPlaneWiseCalcLoss(t *testing.T) {
	t.Run("Every marker is its own plane regardless of presence", func(t *testing.T) {
		conf := planeWiseConf()
		conf.LossXPlanesAdcWeight = 1.0

		p, err := NewPlaneWise(conf)
		require.NoError(t, err)

		// Markers {5, 9, 12}; infill voxels only at x = 5. The empty planes
		// at 9 and 12 still count in the average, comparing zero sums.
		in := mustTensor(t,
			inVoxel(0, 5, 0, 0, 0.0, 1),
			inVoxel(0, 5, 1, 0, 0.0, 1),
		)
		pred := mustTensor(t,
			outVoxel(0, 5, 0, 0, 1.0),
			outVoxel(0, 5, 1, 0, 2.0),
		)
		target := mustTensor(t,
			outVoxel(0, 5, 0, 0, 2.0),
			outVoxel(0, 5, 1, 0, 2.0),
		)
		gaps := &BatchGaps{MaskX: [][]int{{5, 9, 12}}, MaskZ: [][]int{{}}}

		_, breakdown, err := p.CalcLoss(pred, in, target, gaps)
		require.NoError(t, err)

		// Plane 5 compares raw sums |3 - 4| = 1; planes 9 and 12 are 0.
		assert.InDelta(t, 1.0/3.0, breakdown["x_planes_adc"], 1e-12)
	})

	t.Run("Adjacent markers are not merged", func(t *testing.T) {
		conf := planeWiseConf()
		conf.LossXPlanesAdcWeight = 1.0

		p, err := NewPlaneWise(conf)
		require.NoError(t, err)

		in := mustTensor(t,
			inVoxel(0, 4, 0, 0, 0.0, 1),
			inVoxel(0, 5, 0, 0, 0.0, 1),
		)
		pred := mustTensor(t,
			outVoxel(0, 4, 0, 0, 1.0),
			outVoxel(0, 5, 0, 0, 3.0),
		)
		target := mustTensor(t,
			outVoxel(0, 4, 0, 0, 2.0),
			outVoxel(0, 5, 0, 0, 1.0),
		)
		gaps := &BatchGaps{MaskX: [][]int{{4, 5}}, MaskZ: [][]int{{}}}

		_, breakdown, err := p.CalcLoss(pred, in, target, gaps)
		require.NoError(t, err)

		// Two separate planes: |1-2| = 1 and |3-1| = 2, averaged. A merged
		// gap-style range would instead compare |4 - 3| = 1.
		assert.InDelta(t, 1.5, breakdown["x_planes_adc"], 1e-12)
	})

	t.Run("Npixel per plane divides by threshold only", func(t *testing.T) {
		conf := planeWiseConf()
		conf.LossZPlanesNpixelWeight = 1.0

		p, err := NewPlaneWise(conf)
		require.NoError(t, err)

		in := mustTensor(t,
			inVoxel(0, 0, 0, 7, 0.0, 1),
			inVoxel(0, 1, 0, 7, 0.0, 1),
		)
		pred := mustTensor(t,
			outVoxel(0, 0, 0, 7, 5.0), // clamps to 2
			outVoxel(0, 1, 0, 7, 1.0),
		)
		target := mustTensor(t,
			outVoxel(0, 0, 0, 7, 2.0),
			outVoxel(0, 1, 0, 7, 2.0),
		)
		gaps := &BatchGaps{MaskX: [][]int{{}}, MaskZ: [][]int{{7}}}

		_, breakdown, err := p.CalcLoss(pred, in, target, gaps)
		require.NoError(t, err)

		// pred: (2+1)/2 = 1.5; target: (2+2)/2 = 2; |1.5-2| = 0.5. No
		// division by the plane's voxel count.
		assert.InDelta(t, 0.5, breakdown["z_planes_npixel"], 1e-12)
	})

	t.Run("Pixel-wise infill terms", func(t *testing.T) {
		conf := planeWiseConf()
		conf.LossInfillZeroWeight = 1.0
		conf.LossInfillNonzeroWeight = 1.0
		conf.LossInfillWeight = 1.0

		p, err := NewPlaneWise(conf)
		require.NoError(t, err)

		in := mustTensor(t,
			inVoxel(0, 1, 0, 0, 0.0, 1),
			inVoxel(0, 2, 0, 0, 0.0, 1),
		)
		pred := mustTensor(t,
			outVoxel(0, 1, 0, 0, 1.0),
			outVoxel(0, 2, 0, 0, 3.0),
		)
		target := mustTensor(t, outVoxel(0, 2, 0, 0, 2.0))
		gaps := &BatchGaps{MaskX: [][]int{{}}, MaskZ: [][]int{{}}}

		_, breakdown, err := p.CalcLoss(pred, in, target, gaps)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, breakdown["infill_zero"], 1e-12)    // |1-0|
		assert.InDelta(t, 1.0, breakdown["infill_nonzero"], 1e-12) // |3-2|
		assert.InDelta(t, 1.0, breakdown["infill"], 1e-12)         // mean(1, 1)
	})
}

func TestPlaneWiseNamesScaleFactors(t *testing.T) {
	conf := planeWiseConf()
	conf.LossXPlanesAdcWeight = 2.0

	p, err := NewPlaneWise(conf)
	require.NoError(t, err)

	sf := p.NamesScaleFactors()
	assert.Len(t, sf, 7)
	assert.Equal(t, 2.0, sf["x_planes_adc"])
	assert.Zero(t, sf["z_planes_npixel"])
}
