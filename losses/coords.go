package losses

import (
	"github.com/larinfill/larinfill/sparse"
)

// coordPartition is the six-way split of an input tensor's coordinates:
// infill vs active by the input's trailing feature channel, each further
// split into zero vs non-zero by the target's first channel at those
// coordinates. The four leaf subsets are disjoint and together cover every
// coordinate of the input tensor.
type coordPartition struct {
	infill        []sparse.Coord
	active        []sparse.Coord
	infillZero    []sparse.Coord
	infillNonzero []sparse.Coord
	activeZero    []sparse.Coord
	activeNonzero []sparse.Coord
}

// selectCoords partitions the input tensor's coordinates. The trailing
// feature channel of the input is the infill mask (1 = infill, 0 =
// active); the target's first channel decides the zero/nonzero split, with
// coordinates absent from the target reading as 0.
func selectCoords(in, target *sparse.Tensor) coordPartition {
	var p coordPartition

	mask := in.Channels() - 1
	for i, c := range in.Coords() {
		if in.Feats()[i][mask] == 1 {
			p.infill = append(p.infill, c)
		} else {
			p.active = append(p.active, c)
		}
	}

	p.infillZero, p.infillNonzero = splitByTarget(target, p.infill)
	p.activeZero, p.activeNonzero = splitByTarget(target, p.active)

	return p
}

// splitByTarget splits coords on whether the target's first channel at the
// coordinate is zero.
func splitByTarget(target *sparse.Tensor, coords []sparse.Coord) (zero, nonzero []sparse.Coord) {
	vals := target.ChannelAt(coords, 0)
	for i, c := range coords {
		if vals[i] == 0 {
			zero = append(zero, c)
		} else {
			nonzero = append(nonzero, c)
		}
	}
	return zero, nonzero
}

// filterBatch restricts coords to one batch sample.
func filterBatch(coords []sparse.Coord, sample int) []sparse.Coord {
	var out []sparse.Coord
	for _, c := range coords {
		if c.Batch == sample {
			out = append(out, c)
		}
	}
	return out
}

// filterAxisRange restricts coords to those whose axis component lies in
// the inclusive range [start, end].
func filterAxisRange(coords []sparse.Coord, axis sparse.Axis, start, end int) []sparse.Coord {
	var out []sparse.Coord
	for _, c := range coords {
		if v := c.Along(axis); v >= start && v <= end {
			out = append(out, c)
		}
	}
	return out
}
