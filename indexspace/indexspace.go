package indexspace

import (
	"fmt"
)

// Logical dimensions of a structured grid
const (
	I = iota
	J
	K

	NumSpaceDim = 3
)

// IndexSpace is an axis-aligned box of integer lattice indices in 3D.
// Min is inclusive and Max is exclusive in every dimension.
type IndexSpace struct {
	min [NumSpaceDim]int
	max [NumSpaceDim]int
}

// New creates an index space, rejecting boxes with min > max in any dimension
func New(min, max [NumSpaceDim]int) (IndexSpace, error) {
	for d := 0; d < NumSpaceDim; d++ {
		if min[d] > max[d] {
			return IndexSpace{}, fmt.Errorf("dimension %d: min %d > max %d",
				d, min[d], max[d])
		}
	}
	return IndexSpace{min: min, max: max}, nil
}

// FromExtents creates an index space starting at the origin
func FromExtents(extents [NumSpaceDim]int) (IndexSpace, error) {
	return New([NumSpaceDim]int{}, extents)
}

// Empty returns the zero-size index space
func Empty() IndexSpace { return IndexSpace{} }

func (s IndexSpace) Min(dim int) int { return s.min[dim] }
func (s IndexSpace) Max(dim int) int { return s.max[dim] }

// Extent is the number of indices along dim
func (s IndexSpace) Extent(dim int) int { return s.max[dim] - s.min[dim] }

// Size is the total number of indices in the box
func (s IndexSpace) Size() int {
	size := 1
	for d := 0; d < NumSpaceDim; d++ {
		size *= s.Extent(d)
	}
	return size
}

func (s IndexSpace) IsEmpty() bool { return s.Size() == 0 }

func (s IndexSpace) Extents() [NumSpaceDim]int {
	var e [NumSpaceDim]int
	for d := 0; d < NumSpaceDim; d++ {
		e[d] = s.Extent(d)
	}
	return e
}

// Contains reports whether index (i,j,k) lies inside the box
func (s IndexSpace) Contains(i, j, k int) bool {
	ijk := [NumSpaceDim]int{i, j, k}
	for d := 0; d < NumSpaceDim; d++ {
		if ijk[d] < s.min[d] || ijk[d] >= s.max[d] {
			return false
		}
	}
	return true
}

// ContainsSpace reports whether sub lies entirely inside s. An empty sub is
// always contained.
func (s IndexSpace) ContainsSpace(sub IndexSpace) bool {
	if sub.IsEmpty() {
		return true
	}
	for d := 0; d < NumSpaceDim; d++ {
		if sub.min[d] < s.min[d] || sub.max[d] > s.max[d] {
			return false
		}
	}
	return true
}

// Congruent reports whether both boxes have the same extents
func (s IndexSpace) Congruent(o IndexSpace) bool {
	return s.Extents() == o.Extents()
}

// LinearIndex maps (i,j,k) to a row-major offset within s, K varying fastest.
// This is the layout of a field buffer spanning s.
func (s IndexSpace) LinearIndex(i, j, k int) int {
	return ((i-s.min[I])*s.Extent(J)+(j-s.min[J]))*s.Extent(K) + (k - s.min[K])
}

// Indices lists the linear offsets within s of every index of sub, in the
// row-major order of sub. Two congruent subs enumerate in matching order.
func (s IndexSpace) Indices(sub IndexSpace) ([]int, error) {
	if !s.ContainsSpace(sub) {
		return nil, fmt.Errorf("index space %v is not contained in %v", sub, s)
	}
	indices := make([]int, 0, sub.Size())
	for i := sub.min[I]; i < sub.max[I]; i++ {
		for j := sub.min[J]; j < sub.max[J]; j++ {
			for k := sub.min[K]; k < sub.max[K]; k++ {
				indices = append(indices, s.LinearIndex(i, j, k))
			}
		}
	}
	return indices, nil
}

func (s IndexSpace) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]",
		s.min[I], s.max[I], s.min[J], s.max[J], s.min[K], s.max[K])
}
