package losses

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Metric names the elementwise criterion family shared by all loss
// variants.
type Metric int

const (
	MetricL1 Metric = iota
	MetricMSE
	MetricBCEWithLogits
)

func (m Metric) String() string {
	switch m {
	case MetricL1:
		return "L1Loss"
	case MetricMSE:
		return "MSELoss"
	case MetricBCEWithLogits:
		return "BCEWithLogitsLoss"
	default:
		return "Unknown"
	}
}

// criterion evaluates one metric with either mean or sum reduction. The
// sum reduction over zero-length inputs is exactly 0, which is what makes
// empty coordinate subsets safe to evaluate; the mean reduction is only
// ever applied to non-empty inputs.
type criterion struct {
	metric Metric
}

// Sum returns the sum-reduced metric over the paired values.
func (c criterion) Sum(pred, target []float64) float64 {
	switch c.metric {
	case MetricL1:
		return floats.Distance(pred, target, 1)
	case MetricMSE:
		d := floats.Distance(pred, target, 2)
		return d * d
	case MetricBCEWithLogits:
		var sum float64
		for i, x := range pred {
			sum += bceWithLogits(x, target[i])
		}
		return sum
	default:
		return 0
	}
}

// Mean returns the mean-reduced metric over the paired values. Zero-length
// input reduces to 0.
func (c criterion) Mean(pred, target []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	return c.Sum(pred, target) / float64(len(pred))
}

// Scalar evaluates the metric on a single value pair.
func (c criterion) Scalar(pred, target float64) float64 {
	switch c.metric {
	case MetricL1:
		return math.Abs(pred - target)
	case MetricMSE:
		d := pred - target
		return d * d
	case MetricBCEWithLogits:
		return bceWithLogits(pred, target)
	default:
		return 0
	}
}

// bceWithLogits is the numerically stable binary cross-entropy on a raw
// logit x against a target z in [0, 1]:
// max(x, 0) - x*z + log(1 + exp(-|x|)).
func bceWithLogits(x, z float64) float64 {
	return math.Max(x, 0) - x*z + math.Log1p(math.Exp(-math.Abs(x)))
}
