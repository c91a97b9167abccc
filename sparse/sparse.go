// Package sparse provides the CPU-side sparse voxel tensor used by the
// infill loss functions: a parallel list of (batch, x, y, z) coordinates
// and per-voxel feature vectors, with coordinate-indexed feature lookup.
package sparse

import (
	"fmt"
)

// Coord identifies one active voxel in a batched 3D volume.
type Coord struct {
	Batch int
	X     int
	Y     int
	Z     int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", c.Batch, c.X, c.Y, c.Z)
}

// Axis selects one of the two detector axes that carry gap structure.
type Axis int

const (
	AxisX Axis = iota
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisZ:
		return "z"
	default:
		return "Unknown"
	}
}

// Along returns the coordinate component for the given axis.
func (c Coord) Along(a Axis) int {
	if a == AxisZ {
		return c.Z
	}
	return c.X
}

// Tensor is a sparse voxel tensor: one feature vector per active
// coordinate. It is immutable after construction; lookups against
// coordinates not present in the tensor yield zero vectors.
type Tensor struct {
	coords   []Coord
	feats    [][]float64
	channels int
	index    map[Coord]int
}

// New builds a Tensor from parallel coordinate and feature slices.
// The slices must have equal length, every feature vector must have the
// same width, and coordinate rows must be unique.
func New(coords []Coord, feats [][]float64) (*Tensor, error) {
	if len(coords) != len(feats) {
		return nil, fmt.Errorf("coordinate and feature counts differ: %d vs %d", len(coords), len(feats))
	}

	channels := 0
	if len(feats) > 0 {
		channels = len(feats[0])
	}

	index := make(map[Coord]int, len(coords))
	for i, c := range coords {
		if len(feats[i]) != channels {
			return nil, fmt.Errorf("feature row %d has %d channels, expected %d", i, len(feats[i]), channels)
		}
		if _, ok := index[c]; ok {
			return nil, fmt.Errorf("duplicate coordinate %v at row %d", c, i)
		}
		index[c] = i
	}

	return &Tensor{coords: coords, feats: feats, channels: channels, index: index}, nil
}

// Len returns the number of active voxels.
func (t *Tensor) Len() int {
	return len(t.coords)
}

// Channels returns the feature vector width.
func (t *Tensor) Channels() int {
	return t.channels
}

// Coords returns the coordinate rows. The returned slice must not be
// modified.
func (t *Tensor) Coords() []Coord {
	return t.coords
}

// Feats returns the feature rows, parallel to Coords. The returned slices
// must not be modified.
func (t *Tensor) Feats() [][]float64 {
	return t.feats
}

// FeaturesAt returns one feature vector per queried coordinate. A
// coordinate not present in the tensor yields a zero vector of the
// tensor's channel width.
func (t *Tensor) FeaturesAt(coords []Coord) [][]float64 {
	out := make([][]float64, len(coords))
	for i, c := range coords {
		if row, ok := t.index[c]; ok {
			out[i] = t.feats[row]
		} else {
			out[i] = make([]float64, t.channels)
		}
	}
	return out
}

// ChannelAt returns the given feature channel at each queried coordinate,
// with the same absent-coordinate behavior as FeaturesAt.
func (t *Tensor) ChannelAt(coords []Coord, channel int) []float64 {
	out := make([]float64, len(coords))
	for i, c := range coords {
		if row, ok := t.index[c]; ok {
			out[i] = t.feats[row][channel]
		}
	}
	return out
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(voxels=%d, channels=%d)", len(t.coords), t.channels)
}
