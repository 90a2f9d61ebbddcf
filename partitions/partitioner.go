package partitions

import (
	"fmt"
	"sort"
)

// NumDims is the number of logical grid dimensions that are partitioned
const NumDims = 3

// Partitioner decides how many ranks to place along each grid dimension.
// The product of the returned counts must equal numRanks.
type Partitioner interface {
	RanksPerDim(numRanks int, globalNumCell [NumDims]int) ([NumDims]int, error)
}

// UniformDimPartitioner factors the rank count as evenly as possible over
// the three dimensions, ignoring the grid shape
type UniformDimPartitioner struct{}

func (UniformDimPartitioner) RanksPerDim(numRanks int, _ [NumDims]int) ([NumDims]int, error) {
	return DimsCreate(numRanks)
}

// ManualPartitioner returns a fixed, user supplied decomposition
type ManualPartitioner struct {
	Ranks [NumDims]int
}

func (p ManualPartitioner) RanksPerDim(numRanks int, _ [NumDims]int) ([NumDims]int, error) {
	total := 1
	for d := 0; d < NumDims; d++ {
		if p.Ranks[d] < 1 {
			return [NumDims]int{}, fmt.Errorf("dimension %d: %d ranks requested",
				d, p.Ranks[d])
		}
		total *= p.Ranks[d]
	}
	if total != numRanks {
		return [NumDims]int{}, fmt.Errorf("decomposition %v uses %d ranks, have %d",
			p.Ranks, total, numRanks)
	}
	return p.Ranks, nil
}

// DimsCreate balances numRanks over the three dimensions the way
// MPI_Dims_create does: factors are as close to each other as possible and
// the result is non-increasing.
func DimsCreate(numRanks int) ([NumDims]int, error) {
	dims := [NumDims]int{1, 1, 1}
	if numRanks < 1 {
		return dims, fmt.Errorf("invalid rank count %d", numRanks)
	}

	// Largest prime factors first, each onto the currently smallest dimension
	factors := primeFactors(numRanks)
	sort.Sort(sort.Reverse(sort.IntSlice(factors)))
	for _, f := range factors {
		smallest := 0
		for d := 1; d < NumDims; d++ {
			if dims[d] < dims[smallest] {
				smallest = d
			}
		}
		dims[smallest] *= f
	}
	sort.Sort(sort.Reverse(sort.IntSlice(dims[:])))
	return dims, nil
}

func primeFactors(n int) (factors []int) {
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			factors = append(factors, p)
			n /= p
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return
}
