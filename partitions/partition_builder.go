package partitions

import (
	"fmt"
)

// LayoutBuilder constructs a layout from a partitioner decision
type LayoutBuilder struct {
	Partitioner Partitioner
	NumRanks    int

	// Acceptable load imbalance (e.g. 1.1 = 10%), zero disables the check
	MaxImbalance float64
}

// BuildLayout asks the partitioner for ranks per dimension and distributes
// the global cells accordingly
func (lb *LayoutBuilder) BuildLayout(globalNumCell [NumDims]int) (*Layout, error) {
	partitioner := lb.Partitioner
	if partitioner == nil {
		partitioner = UniformDimPartitioner{}
	}

	ranksPerDim, err := partitioner.RanksPerDim(lb.NumRanks, globalNumCell)
	if err != nil {
		return nil, fmt.Errorf("partitioning %d ranks: %w", lb.NumRanks, err)
	}
	if total := ranksPerDim[0] * ranksPerDim[1] * ranksPerDim[2]; total != lb.NumRanks {
		return nil, fmt.Errorf("partitioner returned %v (%d ranks) for %d ranks",
			ranksPerDim, total, lb.NumRanks)
	}

	layout, err := NewLayout(globalNumCell, ranksPerDim)
	if err != nil {
		return nil, err
	}

	if lb.MaxImbalance > 0 {
		stats := layout.PartitionStatistics()
		if stats.Imbalance > lb.MaxImbalance {
			return nil, fmt.Errorf("load imbalance %.3f exceeds %.3f",
				stats.Imbalance, lb.MaxImbalance)
		}
	}
	return layout, nil
}
