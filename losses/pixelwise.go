package losses

import (
	"fmt"

	"github.com/larinfill/larinfill/config"
	"github.com/larinfill/larinfill/sparse"
)

// PixelWise combines up to seven independently weighted voxel-subset
// losses: elementwise terms over the infill/active regions and their
// zero/nonzero target splits, plus an aggregate summed-intensity term over
// the infill region.
type PixelWise struct {
	crit criterion

	lambdaInfillZero    float64
	lambdaInfillNonzero float64
	lambdaActiveZero    float64
	lambdaActiveNonzero float64
	lambdaInfill        float64
	lambdaActive        float64
	lambdaInfillSum     float64
}

// NewPixelWise builds a PixelWise loss from the configuration.
func NewPixelWise(conf *config.Config) (*PixelWise, error) {
	p := &PixelWise{}

	switch conf.LossFunc {
	case "PixelWise_L1Loss":
		p.crit = criterion{metric: MetricL1}
	case "PixelWise_MSELoss":
		p.crit = criterion{metric: MetricMSE}
	case "PixelWise_BCEWithLogitsLoss":
		p.crit = criterion{metric: MetricBCEWithLogits}
	default:
		return nil, fmt.Errorf("%w: loss_func=%q", ErrUnknownLossFunc, conf.LossFunc)
	}

	p.lambdaInfillZero = conf.LossInfillZeroWeight
	p.lambdaInfillNonzero = conf.LossInfillNonzeroWeight
	p.lambdaActiveZero = conf.LossActiveZeroWeight
	p.lambdaActiveNonzero = conf.LossActiveNonzeroWeight
	p.lambdaInfill = conf.LossInfillWeight
	p.lambdaActive = conf.LossActiveWeight
	p.lambdaInfillSum = conf.LossInfillSumWeight

	return p, nil
}

// NamesScaleFactors returns every sub-term with its scale factor.
func (p *PixelWise) NamesScaleFactors() map[string]float64 {
	return map[string]float64{
		"infill_zero":    p.lambdaInfillZero,
		"infill_nonzero": p.lambdaInfillNonzero,
		"active_zero":    p.lambdaActiveZero,
		"active_nonzero": p.lambdaActiveNonzero,
		"infill":         p.lambdaInfill,
		"active":         p.lambdaActive,
		"infill_sum":     p.lambdaInfillSum,
	}
}

// CalcLoss computes each enabled sub-term per sample, averages over the
// batch, and sums the weighted terms into the total. Sub-terms with a zero
// scale factor are skipped entirely and absent from the breakdown.
func (p *PixelWise) CalcLoss(pred, in, target *sparse.Tensor, gaps *BatchGaps) (float64, map[string]float64, error) {
	batchSize := gaps.BatchSize()
	if batchSize == 0 {
		return 0, nil, fmt.Errorf("losses: batch has no samples")
	}

	part := selectCoords(in, target)

	var sumInfillZero, sumInfillNonzero, sumInfill, sumInfillSum float64
	var sumActiveZero, sumActiveNonzero, sumActive float64

	// Compute loss separately for each image and then average over batch.
	for i := 0; i < batchSize; i++ {
		if p.lambdaInfillZero != 0 {
			coords := filterBatch(part.infillZero, i)
			sumInfillZero += lossAtCoords(pred, target, coords, p.crit)
		}

		if p.lambdaInfillNonzero != 0 {
			coords := filterBatch(part.infillNonzero, i)
			sumInfillNonzero += lossAtCoords(pred, target, coords, p.crit)
		}

		if p.lambdaInfill != 0 || p.lambdaInfillSum != 0 {
			coords := filterBatch(part.infill, i)
			if p.lambdaInfill != 0 {
				sumInfill += lossAtCoords(pred, target, coords, p.crit)
			}
			if p.lambdaInfillSum != 0 {
				sumInfillSum += aggregateLossAtCoords(pred, target, coords, p.crit, true)
			}
		}

		if p.lambdaActiveZero != 0 {
			coords := filterBatch(part.activeZero, i)
			sumActiveZero += lossAtCoords(pred, target, coords, p.crit)
		}

		if p.lambdaActiveNonzero != 0 {
			coords := filterBatch(part.activeNonzero, i)
			sumActiveNonzero += lossAtCoords(pred, target, coords, p.crit)
		}

		if p.lambdaActive != 0 {
			coords := filterBatch(part.active, i)
			sumActive += lossAtCoords(pred, target, coords, p.crit)
		}
	}

	n := float64(batchSize)
	lossTot := 0.0
	breakdown := make(map[string]float64)

	addTerm := func(name string, lambda, sum float64) {
		if lambda == 0 {
			return
		}
		loss := sum / n
		lossTot += lambda * loss
		breakdown[name] = loss
	}

	addTerm("infill_zero", p.lambdaInfillZero, sumInfillZero)
	addTerm("infill_nonzero", p.lambdaInfillNonzero, sumInfillNonzero)
	addTerm("infill", p.lambdaInfill, sumInfill)
	addTerm("infill_sum", p.lambdaInfillSum, sumInfillSum)
	addTerm("active_zero", p.lambdaActiveZero, sumActiveZero)
	addTerm("active_nonzero", p.lambdaActiveNonzero, sumActiveNonzero)
	addTerm("active", p.lambdaActive, sumActive)

	return lossTot, breakdown, nil
}
