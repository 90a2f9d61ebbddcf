package partitions

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Layout is the distribution of a structured cell grid over a Cartesian
// arrangement of ranks. Along each dimension the cells are split into
// contiguous runs; any remainder goes one extra cell at a time to the lowest
// block coordinates.
type Layout struct {
	// Global sizing information
	GlobalNumCell [NumDims]int
	RanksPerDim   [NumDims]int

	// Per dimension, indexed by block coordinate along that dimension
	Counts  [NumDims][]int // Cells owned by each block
	Offsets [NumDims][]int // Global index of each block's first cell (exclusive scan of Counts)
}

// BlockRange splits n items into parts runs and returns the start and count
// of run idx. The first n%parts runs receive one extra item.
func BlockRange(n, parts, idx int) (start, count int) {
	var (
		per       = n / parts
		remainder = n % parts
	)
	count = per
	if idx < remainder {
		count++
		start = idx * (per + 1)
	} else {
		start = remainder*(per+1) + (idx-remainder)*per
	}
	return
}

// NewLayout distributes globalNumCell over ranksPerDim
func NewLayout(globalNumCell, ranksPerDim [NumDims]int) (*Layout, error) {
	l := &Layout{
		GlobalNumCell: globalNumCell,
		RanksPerDim:   ranksPerDim,
	}
	for d := 0; d < NumDims; d++ {
		if ranksPerDim[d] < 1 {
			return nil, fmt.Errorf("dimension %d: invalid rank count %d", d, ranksPerDim[d])
		}
		l.Counts[d] = make([]int, ranksPerDim[d])
		l.Offsets[d] = make([]int, ranksPerDim[d])
		for b := 0; b < ranksPerDim[d]; b++ {
			l.Offsets[d][b], l.Counts[d][b] = BlockRange(globalNumCell[d], ranksPerDim[d], b)
		}
	}
	if err := l.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return l, nil
}

// ValidateLayout checks that every block owns at least one cell and that the
// blocks along each dimension cover the global grid without gaps or overlap
func (l *Layout) ValidateLayout() error {
	for d := 0; d < NumDims; d++ {
		next := 0
		for b, count := range l.Counts[d] {
			if count < 1 {
				return fmt.Errorf("dimension %d: block %d owns no cells (%d cells over %d ranks)",
					d, b, l.GlobalNumCell[d], l.RanksPerDim[d])
			}
			if l.Offsets[d][b] != next {
				return fmt.Errorf("dimension %d: block %d starts at %d, expected %d",
					d, b, l.Offsets[d][b], next)
			}
			next += count
		}
		if next != l.GlobalNumCell[d] {
			return fmt.Errorf("dimension %d: blocks cover %d cells, grid has %d",
				d, next, l.GlobalNumCell[d])
		}
	}
	return nil
}

// NumBlocks is the total number of blocks in the layout
func (l *Layout) NumBlocks() int {
	return l.RanksPerDim[0] * l.RanksPerDim[1] * l.RanksPerDim[2]
}

// BlockCells returns the number of owned cells of every block, with blocks
// ordered row-major over their coordinates, last dimension fastest
func (l *Layout) BlockCells() []int {
	cells := make([]int, 0, l.NumBlocks())
	for _, ci := range l.Counts[0] {
		for _, cj := range l.Counts[1] {
			for _, ck := range l.Counts[2] {
				cells = append(cells, ci*cj*ck)
			}
		}
	}
	return cells
}

// PartitionStatistics computes load balance metrics of the layout
func (l *Layout) PartitionStatistics() PartitionStats {
	return Statistics(l.BlockCells())
}

type PartitionStats struct {
	NumPartitions int
	MinCells      int
	MaxCells      int
	AvgCells      float64
	StdDevCells   float64
	Imbalance     float64 // MaxCells / AvgCells
}

// Statistics summarizes the owned cell counts of a set of partitions
func Statistics(cells []int) PartitionStats {
	stats := PartitionStats{NumPartitions: len(cells)}
	if len(cells) == 0 {
		return stats
	}

	x := make([]float64, len(cells))
	for i, c := range cells {
		x[i] = float64(c)
	}
	stats.MinCells = int(floats.Min(x))
	stats.MaxCells = int(floats.Max(x))
	if len(x) > 1 {
		stats.AvgCells, stats.StdDevCells = stat.MeanStdDev(x, nil)
	} else {
		stats.AvgCells = x[0]
	}
	if stats.AvgCells > 0 {
		stats.Imbalance = float64(stats.MaxCells) / stats.AvgCells
	}
	return stats
}
