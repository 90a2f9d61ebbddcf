// Package comm provides the communication context used by the grid
// decomposition: a Comm abstraction of a group of cooperating ranks, an
// in-process World implementation that runs every rank as a goroutine, and a
// Cartesian process topology built collectively on top of any Comm.
//
// Collective calls (Barrier, AllGatherInts, NewCart) block until every rank
// of the group has entered them. All ranks must call them in the same order
// with compatible arguments.
package comm

import (
	"context"
	"errors"
)

// ErrAborted is returned from blocking calls after another rank of the
// world failed and the world was torn down.
var ErrAborted = errors.New("comm: world aborted")

// ErrWorldUsed is returned by World.Run on a world that has already run
var ErrWorldUsed = errors.New("comm: world already ran")

// Comm is a group of ranks able to exchange data
type Comm interface {
	// Rank of the calling process in the group, 0 <= Rank() < Size()
	Rank() int
	Size() int

	// Barrier blocks until all ranks have called it
	Barrier() error

	// AllGatherInts contributes v and returns every rank's contribution
	// indexed by rank
	AllGatherInts(v []int) ([][]int, error)

	// Send delivers a copy of data to dest. {source, dest, tag} triples must
	// be unique among unmatched sends.
	Send(ctx context.Context, dest, tag int, data []float64) error

	// Recv fills data with the message sent from src with tag. The message
	// length must equal len(data).
	Recv(ctx context.Context, src, tag int, data []float64) error
}
