package comm

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
)

// NumDims is the dimensionality of the Cartesian process topology
const NumDims = 3

// Cart is a communicator whose ranks are arranged on a 3D Cartesian process
// grid. Ranks are numbered row-major over coordinates with the last
// dimension varying fastest. A Cart is itself a Comm over the same group.
type Cart struct {
	parent   Comm
	dims     [NumDims]int
	periodic [NumDims]bool
	coords   [NumDims]int
	freed    atomic.Bool
}

// TopologyMismatchError reports ranks that entered NewCart with different
// arguments
type TopologyMismatchError struct {
	Rank, Other int
}

func (e *TopologyMismatchError) Error() string {
	return fmt.Sprintf("rank %d and rank %d requested different Cartesian topologies",
		e.Rank, e.Other)
}

// NewCart collectively builds a Cartesian topology over c. Every rank of c
// must call it. The product of dims must equal c.Size(); rank reordering is
// permitted but this implementation keeps the parent's numbering.
func NewCart(c Comm, dims [NumDims]int, periodic [NumDims]bool) (*Cart, error) {
	total := 1
	for d := 0; d < NumDims; d++ {
		if dims[d] < 1 {
			return nil, fmt.Errorf("dimension %d has %d ranks", d, dims[d])
		}
		total *= dims[d]
	}
	if total != c.Size() {
		return nil, fmt.Errorf("topology %v holds %d ranks but communicator has %d",
			dims, total, c.Size())
	}

	// Every rank must agree on the shape and periodicity
	local := make([]int, 0, 2*NumDims)
	for d := 0; d < NumDims; d++ {
		local = append(local, dims[d], boolToInt(periodic[d]))
	}
	all, err := c.AllGatherInts(local)
	if err != nil {
		return nil, fmt.Errorf("exchanging topology: %w", err)
	}
	for r, other := range all {
		if !slices.Equal(local, other) {
			return nil, &TopologyMismatchError{Rank: c.Rank(), Other: r}
		}
	}

	cart := &Cart{
		parent:   c,
		dims:     dims,
		periodic: periodic,
	}
	cart.coords = cart.CoordsOf(c.Rank())
	return cart, nil
}

func (c *Cart) Rank() int                              { return c.parent.Rank() }
func (c *Cart) Size() int                              { return c.parent.Size() }
func (c *Cart) Barrier() error                         { return c.parent.Barrier() }
func (c *Cart) AllGatherInts(v []int) ([][]int, error) { return c.parent.AllGatherInts(v) }

func (c *Cart) Send(ctx context.Context, dest, tag int, data []float64) error {
	if c.freed.Load() {
		return fmt.Errorf("send on freed Cartesian communicator")
	}
	return c.parent.Send(ctx, dest, tag, data)
}

func (c *Cart) Recv(ctx context.Context, src, tag int, data []float64) error {
	if c.freed.Load() {
		return fmt.Errorf("recv on freed Cartesian communicator")
	}
	return c.parent.Recv(ctx, src, tag, data)
}

// Dims returns the number of ranks along each dimension
func (c *Cart) Dims() [NumDims]int { return c.dims }

func (c *Cart) Periodic() [NumDims]bool { return c.periodic }

// Coords returns this rank's coordinate in the process grid
func (c *Cart) Coords() [NumDims]int { return c.coords }

// CoordsOf returns the coordinate of rank in the process grid
func (c *Cart) CoordsOf(rank int) [NumDims]int {
	var coords [NumDims]int
	for d := NumDims - 1; d >= 0; d-- {
		coords[d] = rank % c.dims[d]
		rank /= c.dims[d]
	}
	return coords
}

// RankOf resolves a coordinate to a rank. Coordinates outside the grid wrap
// along periodic dimensions; along a non-periodic dimension they have no
// rank and ok is false.
func (c *Cart) RankOf(coords [NumDims]int) (rank int, ok bool) {
	for d := 0; d < NumDims; d++ {
		n := c.dims[d]
		cd := coords[d]
		if cd < 0 || cd >= n {
			if !c.periodic[d] {
				return -1, false
			}
			cd = ((cd % n) + n) % n
		}
		rank = rank*n + cd
	}
	return rank, true
}

// Free releases the topology. Further point-to-point calls fail. Free is
// idempotent.
func (c *Cart) Free() {
	c.freed.Store(true)
}

func (c *Cart) Freed() bool { return c.freed.Load() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
