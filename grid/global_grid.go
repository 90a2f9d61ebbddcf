// Package grid decomposes a uniform structured 3D grid over a Cartesian
// arrangement of ranks and describes, for one rank, the index spaces of its
// owned and halo-padded data and the sub-spaces exchanged with each of its
// 26 logical neighbors.
package grid

import (
	"fmt"
	"math"

	"github.com/notargets/GridBlock/comm"
	"github.com/notargets/GridBlock/partitions"
	"go.uber.org/zap"
)

// Relative tolerance used when checking the domain extent is a whole number
// of cells
const extentTolerance = 1.e-10

// GlobalGrid is the full problem domain and this rank's contiguous slice of
// it. It owns the Cartesian communicator for its lifetime.
type GlobalGrid struct {
	cart   *comm.Cart
	logger *zap.Logger

	// Global domain
	globalLowCorner [3]float64
	cellSize        float64
	globalNumCell   [3]int
	periodic        [3]bool

	// Decomposition
	ranksPerDim    [3]int
	blockID        [3]int // This rank's coordinate in the process grid
	localNumCell   [3]int
	globalOffset   [3]int // Global index of the first owned cell
	localLowCorner [3]float64
	lowBoundary    [3]bool
	highBoundary   [3]bool
}

// Option configures grid construction
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report the decomposition
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewGlobalGrid builds the global grid and this rank's slice of it. It is a
// collective call over c: every rank must call it with matching arguments.
// Parameter errors are detected before any communication takes place.
func NewGlobalGrid(c comm.Comm, ranksPerDim [3]int, periodic [3]bool,
	globalLowCorner, globalHighCorner [3]float64, cellSize float64,
	opts ...Option) (*GlobalGrid, error) {
	o := buildOptions(opts)

	globalNumCell, err := NumCells(globalLowCorner, globalHighCorner, cellSize)
	if err != nil {
		return nil, err
	}

	layout, err := partitions.NewLayout(globalNumCell, ranksPerDim)
	if err != nil {
		return nil, &ConfigurationError{Dim: -1, Reason: err.Error()}
	}

	cart, err := comm.NewCart(c, ranksPerDim, periodic)
	if err != nil {
		return nil, &TopologyError{RanksPerDim: ranksPerDim, Err: err}
	}

	g := &GlobalGrid{
		cart:            cart,
		logger:          o.logger,
		globalLowCorner: globalLowCorner,
		cellSize:        cellSize,
		globalNumCell:   globalNumCell,
		periodic:        periodic,
		ranksPerDim:     ranksPerDim,
		blockID:         cart.Coords(),
	}
	for d := 0; d < 3; d++ {
		b := g.blockID[d]
		g.localNumCell[d] = layout.Counts[d][b]
		g.globalOffset[d] = layout.Offsets[d][b]
		g.localLowCorner[d] = float64(g.globalOffset[d])*cellSize + globalLowCorner[d]
		g.lowBoundary[d] = b == 0
		g.highBoundary[d] = b == ranksPerDim[d]-1
	}

	g.logger.Debug("global grid decomposed",
		zap.Int("rank", cart.Rank()),
		zap.Ints("block", g.blockID[:]),
		zap.Ints("ranks_per_dim", ranksPerDim[:]),
		zap.Ints("local_cells", g.localNumCell[:]),
		zap.Ints("global_offset", g.globalOffset[:]),
	)
	return g, nil
}

// NewGlobalGridFromPartitioner lets p choose the ranks per dimension for
// the size of c and then builds the grid
func NewGlobalGridFromPartitioner(c comm.Comm, p partitions.Partitioner,
	periodic [3]bool, globalLowCorner, globalHighCorner [3]float64,
	cellSize float64, opts ...Option) (*GlobalGrid, error) {
	globalNumCell, err := NumCells(globalLowCorner, globalHighCorner, cellSize)
	if err != nil {
		return nil, err
	}
	ranksPerDim, err := p.RanksPerDim(c.Size(), globalNumCell)
	if err != nil {
		return nil, &TopologyError{Err: fmt.Errorf("partitioner: %w", err)}
	}
	return NewGlobalGrid(c, ranksPerDim, periodic, globalLowCorner,
		globalHighCorner, cellSize, opts...)
}

// NumCells is the number of cells of size cellSize between low and high in
// each dimension. The extent must be a whole number of cells.
func NumCells(low, high [3]float64, cellSize float64) (n [3]int, err error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return n, &ConfigurationError{Dim: -1,
			Reason: fmt.Sprintf("cell size %g must be positive", cellSize)}
	}
	for d := 0; d < 3; d++ {
		extent := high[d] - low[d]
		n[d] = int(math.Round(extent / cellSize))
		if n[d] < 1 {
			return n, &ConfigurationError{Dim: d,
				Reason: fmt.Sprintf("extent [%g, %g] holds no cells of size %g",
					low[d], high[d], cellSize)}
		}
		computed := float64(n[d])*cellSize + low[d]
		scale := math.Max(1, math.Max(math.Abs(high[d]), math.Abs(low[d])))
		if math.Abs(computed-high[d]) > extentTolerance*scale {
			return n, &ConfigurationError{Dim: d,
				Reason: fmt.Sprintf("extent %g is not divisible by cell size %g",
					extent, cellSize)}
		}
	}
	return n, nil
}

// Close releases the Cartesian communicator. It is safe to call more than
// once.
func (g *GlobalGrid) Close() error {
	g.cart.Free()
	return nil
}

// Comm is the grid communicator, which has a Cartesian topology
func (g *GlobalGrid) Comm() *comm.Cart { return g.cart }

func (g *GlobalGrid) IsPeriodic(dim int) bool { return g.periodic[dim] }

// NumCell is the global number of cells along dim
func (g *GlobalGrid) NumCell(dim int) int { return g.globalNumCell[dim] }

// NumNode is the global number of nodes along dim
func (g *GlobalGrid) NumNode(dim int) int { return g.globalNumCell[dim] + 1 }

// LowCorner is the global low corner of the domain
func (g *GlobalGrid) LowCorner(dim int) float64 { return g.globalLowCorner[dim] }

func (g *GlobalGrid) CellSize() float64 { return g.cellSize }

// DimBlockID is this rank's coordinate in the process grid along dim
func (g *GlobalGrid) DimBlockID(dim int) int { return g.blockID[dim] }

// DimNumBlock is the number of ranks along dim
func (g *GlobalGrid) DimNumBlock(dim int) int { return g.ranksPerDim[dim] }

func (g *GlobalGrid) LocalNumCell(dim int) int      { return g.localNumCell[dim] }
func (g *GlobalGrid) GlobalOffset(dim int) int      { return g.globalOffset[dim] }
func (g *GlobalGrid) LocalLowCorner(dim int) float64 { return g.localLowCorner[dim] }

// OnLowBoundary reports whether this rank touches the low physical boundary
// of dim
func (g *GlobalGrid) OnLowBoundary(dim int) bool  { return g.lowBoundary[dim] }
func (g *GlobalGrid) OnHighBoundary(dim int) bool { return g.highBoundary[dim] }
