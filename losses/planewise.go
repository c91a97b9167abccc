package losses

import (
	"fmt"

	"github.com/larinfill/larinfill/config"
	"github.com/larinfill/larinfill/sparse"
)

// PlaneWise is the plane-grouped variant of GapWise: every gap marker
// forms its own constant-coordinate plane, whether or not any infill
// coordinate lies in it, and the adc term compares raw summed intensities
// per plane instead of per-voxel means.
type PlaneWise struct {
	critAdc    criterion
	critNpixel criterion

	adcThreshold float64

	lambdaInfillZero    float64
	lambdaInfillNonzero float64
	lambdaInfill        float64
	lambdaXPlanesAdc    float64
	lambdaXPlanesNpixel float64
	lambdaZPlanesAdc    float64
	lambdaZPlanesNpixel float64
}

// NewPlaneWise builds a PlaneWise loss from the configuration.
func NewPlaneWise(conf *config.Config) (*PlaneWise, error) {
	p := &PlaneWise{}

	switch conf.LossFunc {
	case "PlaneWise_L1Loss":
		p.critAdc = criterion{metric: MetricL1}
		p.critNpixel = criterion{metric: MetricL1}
	default:
		return nil, fmt.Errorf("%w: loss_func=%q", ErrUnknownLossFunc, conf.LossFunc)
	}

	p.adcThreshold = conf.AdcThreshold

	p.lambdaInfillZero = conf.LossInfillZeroWeight
	p.lambdaInfillNonzero = conf.LossInfillNonzeroWeight
	p.lambdaInfill = conf.LossInfillWeight
	p.lambdaXPlanesAdc = conf.LossXPlanesAdcWeight
	p.lambdaXPlanesNpixel = conf.LossXPlanesNpixelWeight
	p.lambdaZPlanesAdc = conf.LossZPlanesAdcWeight
	p.lambdaZPlanesNpixel = conf.LossZPlanesNpixelWeight

	if p.adcThreshold <= 0 && (p.lambdaXPlanesNpixel != 0 || p.lambdaZPlanesNpixel != 0) {
		return nil, ErrThresholdRequired
	}

	return p, nil
}

// NamesScaleFactors returns every sub-term with its scale factor.
func (p *PlaneWise) NamesScaleFactors() map[string]float64 {
	return map[string]float64{
		"infill_zero":     p.lambdaInfillZero,
		"infill_nonzero":  p.lambdaInfillNonzero,
		"infill":          p.lambdaInfill,
		"x_planes_adc":    p.lambdaXPlanesAdc,
		"x_planes_npixel": p.lambdaXPlanesNpixel,
		"z_planes_adc":    p.lambdaZPlanesAdc,
		"z_planes_npixel": p.lambdaZPlanesNpixel,
	}
}

// CalcLoss computes the enabled sub-terms per sample, averages over the
// batch and sums the weighted terms.
func (p *PlaneWise) CalcLoss(pred, in, target *sparse.Tensor, gaps *BatchGaps) (float64, map[string]float64, error) {
	batchSize := gaps.BatchSize()
	if batchSize == 0 {
		return 0, nil, fmt.Errorf("losses: batch has no samples")
	}

	part := selectCoords(in, target)

	var sumInfillZero, sumInfillNonzero, sumInfill float64
	var sumXPlaneAdc, sumXPlaneNpixel, sumZPlaneAdc, sumZPlaneNpixel float64

	for i := 0; i < batchSize; i++ {
		if p.lambdaInfillZero != 0 {
			coords := filterBatch(part.infillZero, i)
			sumInfillZero += lossAtCoords(pred, target, coords, p.critAdc)
		}

		if p.lambdaInfillNonzero != 0 {
			coords := filterBatch(part.infillNonzero, i)
			sumInfillNonzero += lossAtCoords(pred, target, coords, p.critAdc)
		}

		batchInfill := filterBatch(part.infill, i)

		if p.lambdaInfill != 0 {
			sumInfill += lossAtCoords(pred, target, batchInfill, p.critAdc)
		}

		adc, npixel := p.planeLosses(
			pred, target, gaps.Markers(i, sparse.AxisX), batchInfill, sparse.AxisX,
			p.lambdaXPlanesAdc == 0, p.lambdaXPlanesNpixel == 0,
		)
		sumXPlaneAdc += adc
		sumXPlaneNpixel += npixel

		adc, npixel = p.planeLosses(
			pred, target, gaps.Markers(i, sparse.AxisZ), batchInfill, sparse.AxisZ,
			p.lambdaZPlanesAdc == 0, p.lambdaZPlanesNpixel == 0,
		)
		sumZPlaneAdc += adc
		sumZPlaneNpixel += npixel
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
	addTerm("x_planes_adc", p.lambdaXPlanesAdc, sumXPlaneAdc)
	addTerm("x_planes_npixel", p.lambdaXPlanesNpixel, sumXPlaneNpixel)
	addTerm("z_planes_adc", p.lambdaZPlanesAdc, sumZPlaneAdc)
	addTerm("z_planes_npixel", p.lambdaZPlanesNpixel, sumZPlaneNpixel)

	return lossTot, breakdown, nil
}

// planeLosses evaluates the adc and npixel losses for one sample along one
// axis, averaged over all marker planes. Planes with no infill
// coordinates still count: they compare two zero sums. A sample with no
// markers at all contributes explicit zeros.
func (p *PlaneWise) planeLosses(
	pred, target *sparse.Tensor,
	markers map[int]bool,
	infill []sparse.Coord,
	axis sparse.Axis,
	skipAdc, skipNpixel bool,
) (adc, npixel float64) {
	if skipAdc && skipNpixel {
		return 0, 0
	}

	planes := planeRanges(markers)
	if len(planes) == 0 {
		return 0, 0
	}

	var sumAdc, sumNpixel float64
	for _, plane := range planes {
		planeCoords := filterAxisRange(infill, axis, plane[0], plane[1])

		if !skipAdc {
			sumAdc += aggregateLossAtCoords(pred, target, planeCoords, p.critAdc, false)
		}
		if !skipNpixel {
			sumNpixel += thresholdCountLoss(pred, target, planeCoords, p.critNpixel, p.adcThreshold, false)
		}
	}

	n := float64(len(planes))
	if !skipAdc {
		adc = sumAdc / n
	}
	if !skipNpixel {
		npixel = sumNpixel / n
	}
	return adc, npixel
}
