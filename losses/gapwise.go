package losses

import (
	"fmt"

	"github.com/larinfill/larinfill/config"
	"github.com/larinfill/larinfill/sparse"
)

// GapWise combines pixel-wise infill losses with per-gap aggregate terms:
// for each axis, a summed-adc loss and a thresholded pixel-count loss,
// each evaluated once per maximal contiguous run of populated gap markers
// and averaged over the runs.
type GapWise struct {
	critAdc    criterion
	critNpixel criterion
	critPixel  criterion

	adcThreshold float64

	lambdaInfillZero    float64
	lambdaInfillNonzero float64
	lambdaInfill        float64
	lambdaXGapsAdc      float64
	lambdaXGapsNpixel   float64
	lambdaZGapsAdc      float64
	lambdaZGapsNpixel   float64
}

// NewGapWise builds a GapWise loss from the configuration. Enabling an
// npixel term requires a positive adc threshold; that is checked here so a
// bad configuration fails before any batch is processed.
func NewGapWise(conf *config.Config) (*GapWise, error) {
	g := &GapWise{}

	switch conf.LossFunc {
	case "GapWise_L1Loss":
		g.critAdc = criterion{metric: MetricL1}
		g.critNpixel = criterion{metric: MetricL1}
		g.critPixel = criterion{metric: MetricL1}
	case "GapWise_MSELoss":
		g.critAdc = criterion{metric: MetricMSE}
		g.critNpixel = criterion{metric: MetricMSE}
		g.critPixel = criterion{metric: MetricMSE}
	case "GapWise_L1Loss_MSELossPixelWise":
		g.critAdc = criterion{metric: MetricL1}
		g.critNpixel = criterion{metric: MetricL1}
		g.critPixel = criterion{metric: MetricMSE}
	default:
		return nil, fmt.Errorf("%w: loss_func=%q", ErrUnknownLossFunc, conf.LossFunc)
	}

	g.adcThreshold = conf.AdcThreshold

	g.lambdaInfillZero = conf.LossInfillZeroWeight
	g.lambdaInfillNonzero = conf.LossInfillNonzeroWeight
	g.lambdaInfill = conf.LossInfillWeight
	g.lambdaXGapsAdc = conf.LossXGapsAdcWeight
	g.lambdaXGapsNpixel = conf.LossXGapsNpixelWeight
	g.lambdaZGapsAdc = conf.LossZGapsAdcWeight
	g.lambdaZGapsNpixel = conf.LossZGapsNpixelWeight

	if g.adcThreshold <= 0 && (g.lambdaXGapsNpixel != 0 || g.lambdaZGapsNpixel != 0) {
		return nil, ErrThresholdRequired
	}

	return g, nil
}

// NamesScaleFactors returns every sub-term with its scale factor.
func (g *GapWise) NamesScaleFactors() map[string]float64 {
	return map[string]float64{
		"infill_zero":    g.lambdaInfillZero,
		"infill_nonzero": g.lambdaInfillNonzero,
		"infill":         g.lambdaInfill,
		"x_gaps_adc":     g.lambdaXGapsAdc,
		"x_gaps_npixel":  g.lambdaXGapsNpixel,
		"z_gaps_adc":     g.lambdaZGapsAdc,
		"z_gaps_npixel":  g.lambdaZGapsNpixel,
	}
}

// CalcLoss computes the enabled sub-terms per sample, averages over the
// batch and sums the weighted terms. A sample with no populated gap
// markers along an axis contributes an explicit zero to that axis's gap
// terms rather than being dropped from the batch average.
func (g *GapWise) CalcLoss(pred, in, target *sparse.Tensor, gaps *BatchGaps) (float64, map[string]float64, error) {
	batchSize := gaps.BatchSize()
	if batchSize == 0 {
		return 0, nil, fmt.Errorf("losses: batch has no samples")
	}

	part := selectCoords(in, target)

	var sumInfillZero, sumInfillNonzero, sumInfill float64
	var sumXGapAdc, sumXGapNpixel, sumZGapAdc, sumZGapNpixel float64

	for i := 0; i < batchSize; i++ {
		if g.lambdaInfillZero != 0 {
			coords := filterBatch(part.infillZero, i)
			sumInfillZero += lossAtCoords(pred, target, coords, g.critPixel)
		}

		if g.lambdaInfillNonzero != 0 {
			coords := filterBatch(part.infillNonzero, i)
			sumInfillNonzero += lossAtCoords(pred, target, coords, g.critPixel)
		}

		batchInfill := filterBatch(part.infill, i)

		if g.lambdaInfill != 0 {
			sumInfill += lossAtCoords(pred, target, batchInfill, g.critPixel)
		}

		adc, npixel := g.gapLosses(
			pred, target, gaps.Markers(i, sparse.AxisX), batchInfill, sparse.AxisX,
			g.lambdaXGapsAdc == 0, g.lambdaXGapsNpixel == 0,
		)
		sumXGapAdc += adc
		sumXGapNpixel += npixel

		adc, npixel = g.gapLosses(
			pred, target, gaps.Markers(i, sparse.AxisZ), batchInfill, sparse.AxisZ,
			g.lambdaZGapsAdc == 0, g.lambdaZGapsNpixel == 0,
		)
		sumZGapAdc += adc
		sumZGapNpixel += npixel
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

	addTerm("infill_zero", g.lambdaInfillZero, sumInfillZero)
	addTerm("infill_nonzero", g.lambdaInfillNonzero, sumInfillNonzero)
	addTerm("infill", g.lambdaInfill, sumInfill)
	addTerm("x_gaps_adc", g.lambdaXGapsAdc, sumXGapAdc)
	addTerm("x_gaps_npixel", g.lambdaXGapsNpixel, sumXGapNpixel)
	addTerm("z_gaps_adc", g.lambdaZGapsAdc, sumZGapAdc)
	addTerm("z_gaps_npixel", g.lambdaZGapsNpixel, sumZGapNpixel)

	return lossTot, breakdown, nil
}

// gapLosses evaluates the adc and npixel losses for one sample along one
// axis, averaged over the contiguous runs of populated gap markers. With
// no populated markers it returns explicit zeros so the sample still
// contributes a neutral term to the batch average.
func (g *GapWise) gapLosses(
	pred, target *sparse.Tensor,
	markers map[int]bool,
	infill []sparse.Coord,
	axis sparse.Axis,
	skipAdc, skipNpixel bool,
) (adc, npixel float64) {
	if skipAdc && skipNpixel {
		return 0, 0
	}

	ranges := gapRanges(markers, infill, axis)
	if len(ranges) == 0 {
		return 0, 0
	}

	var sumAdc, sumNpixel float64
	for _, r := range ranges {
		gapCoords := filterAxisRange(infill, axis, r[0], r[1])

		if !skipAdc {
			sumAdc += aggregateLossAtCoords(pred, target, gapCoords, g.critAdc, true)
		}
		if !skipNpixel {
			sumNpixel += thresholdCountLoss(pred, target, gapCoords, g.critNpixel, g.adcThreshold, true)
		}
	}

	n := float64(len(ranges))
	if !skipAdc {
		adc = sumAdc / n
	}
	if !skipNpixel {
		npixel = sumNpixel / n
	}
	return adc, npixel
}
