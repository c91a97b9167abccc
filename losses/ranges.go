package losses

import (
	"sort"

	"github.com/larinfill/larinfill/sparse"
)

// gapRanges groups the gap markers that are actually populated by infill
// coordinates along the given axis into maximal contiguous runs. An empty
// result means no gap marker is populated for this sample; the caller
// substitutes a zero loss contribution.
func gapRanges(markers map[int]bool, infill []sparse.Coord, axis sparse.Axis) [][2]int {
	return contiguousRanges(activeGapMarkers(markers, infill, axis))
}

// activeGapMarkers returns the distinct axis values present in the infill
// coordinates that are also gap markers, sorted ascending.
func activeGapMarkers(markers map[int]bool, infill []sparse.Coord, axis sparse.Axis) []int {
	seen := make(map[int]bool)
	var active []int
	for _, c := range infill {
		v := c.Along(axis)
		if markers[v] && !seen[v] {
			seen[v] = true
			active = append(active, v)
		}
	}
	sort.Ints(active)
	return active
}

// contiguousRanges partitions sorted distinct integers into maximal runs
// of consecutive values, returned as inclusive (start, end) pairs. A lone
// value becomes the pair (v, v).
func contiguousRanges(vals []int) [][2]int {
	if len(vals) == 0 {
		return nil
	}

	var ranges [][2]int
	start := vals[0]
	prev := vals[0]
	for _, v := range vals[1:] {
		if v > prev+1 {
			ranges = append(ranges, [2]int{start, prev})
			start = v
		}
		prev = v
	}
	ranges = append(ranges, [2]int{start, prev})

	return ranges
}

// planeRanges treats every marker as its own singleton group, regardless
// of whether the marker's plane contains any infill coordinates. Groups
// are returned in ascending marker order.
func planeRanges(markers map[int]bool) [][2]int {
	vals := make([]int, 0, len(markers))
	for v := range markers {
		vals = append(vals, v)
	}
	sort.Ints(vals)

	ranges := make([][2]int, len(vals))
	for i, v := range vals {
		ranges[i] = [2]int{v, v}
	}
	return ranges
}
