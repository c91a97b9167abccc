// Package losses implements the configurable training losses for the
// sparse infill network. A Loss is selected once from the configuration
// via New and then applied batch by batch; each variant combines weighted
// sub-terms computed over subsets of the sparse voxel coordinates (infill
// vs active regions, zero vs non-zero targets, detector gap ranges or
// constant-coordinate planes).
package losses

import (
	"github.com/larinfill/larinfill/sparse"
)

// Loss is the interface all loss variants implement. A Loss instance is
// immutable after construction; CalcLoss carries no state between batches.
type Loss interface {
	// NamesScaleFactors returns every sub-term name with its configured
	// scale factor, including terms whose factor is zero.
	NamesScaleFactors() map[string]float64

	// CalcLoss computes the total weighted loss for one batch along with a
	// breakdown of the unweighted per-term values. Only terms with a
	// non-zero scale factor appear in the breakdown.
	CalcLoss(pred, in, target *sparse.Tensor, gaps *BatchGaps) (float64, map[string]float64, error)
}

// BatchGaps supplies, per batch sample, the known detector dead-zone
// coordinates along the x and z axes. Both slices have one entry per
// sample.
type BatchGaps struct {
	MaskX [][]int
	MaskZ [][]int
}

// BatchSize returns the number of samples in the batch.
func (g *BatchGaps) BatchSize() int {
	return len(g.MaskX)
}

// Markers returns the sample's gap markers along the given axis as a set.
func (g *BatchGaps) Markers(sample int, axis sparse.Axis) map[int]bool {
	var vals []int
	if axis == sparse.AxisZ {
		vals = g.MaskZ[sample]
	} else {
		vals = g.MaskX[sample]
	}
	set := make(map[int]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
