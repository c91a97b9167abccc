package losses

import (
	"gonum.org/v1/gonum/floats"

	"github.com/larinfill/larinfill/sparse"
)

// lossAtCoords evaluates the mean-reduced criterion on the first feature
// channel of both tensors at the given coordinates. An empty subset falls
// back to the sum reduction, which is a well-defined 0 instead of a
// division by zero.
func lossAtCoords(pred, target *sparse.Tensor, coords []sparse.Coord, crit criterion) float64 {
	p := pred.ChannelAt(coords, 0)
	t := target.ChannelAt(coords, 0)

	if len(coords) > 0 {
		return crit.Mean(p, t)
	}
	return crit.Sum(p, t)
}

// aggregateLossAtCoords sums the first feature channel over the whole
// subset for both tensors and evaluates the criterion on the two sums.
// With perVoxel set the sums are divided by the subset size first, which
// bounds the loss for voxel values bounded [0, 1]; an empty subset keeps
// the raw (zero) sums.
func aggregateLossAtCoords(pred, target *sparse.Tensor, coords []sparse.Coord, crit criterion, perVoxel bool) float64 {
	p := floats.Sum(pred.ChannelAt(coords, 0))
	t := floats.Sum(target.ChannelAt(coords, 0))

	if n := len(coords); perVoxel && n > 0 {
		p /= float64(n)
		t /= float64(n)
	}
	return crit.Scalar(p, t)
}

// thresholdCountLoss is a differentiable proxy for the count of voxels
// above the adc threshold: values are clamped to [0, threshold], summed
// and divided by the threshold (and optionally by the subset size) before
// the criterion is applied. The threshold is validated > 0 at strategy
// construction.
func thresholdCountLoss(pred, target *sparse.Tensor, coords []sparse.Coord, crit criterion, threshold float64, perVoxel bool) float64 {
	p := clampedSum(pred.ChannelAt(coords, 0), threshold) / threshold
	t := clampedSum(target.ChannelAt(coords, 0), threshold) / threshold

	if n := len(coords); perVoxel && n > 0 {
		p /= float64(n)
		t /= float64(n)
	}
	return crit.Scalar(p, t)
}

func clampedSum(vals []float64, limit float64) float64 {
	var sum float64
	for _, v := range vals {
		if v < 0 {
			v = 0
		} else if v > limit {
			v = limit
		}
		sum += v
	}
	return sum
}
