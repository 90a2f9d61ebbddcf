package grid

import (
	"fmt"

	"github.com/notargets/GridBlock/indexspace"
)

// NoNeighbor is the rank reported for an offset that crosses a non-periodic
// domain boundary
const NoNeighbor = -1

// Offsets enumerates the 26 neighbor offsets in {-1,0,1}^3 \ {(0,0,0)}, with
// the first component varying slowest
var Offsets = neighborOffsets()

func neighborOffsets() (offsets [26][3]int) {
	n := 0
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				offsets[n] = [3]int{i, j, k}
				n++
			}
		}
	}
	return
}

// OffsetIndex maps a neighbor offset to a unique slot in [0, 27). The zero
// offset and components outside {-1,0,1} are rejected.
func OffsetIndex(i, j, k int) (int, error) {
	o := [3]int{i, j, k}
	if i == 0 && j == 0 && k == 0 {
		return 0, &InvalidOffsetError{Offset: o}
	}
	for d := 0; d < 3; d++ {
		if o[d] < -1 || o[d] > 1 {
			return 0, &InvalidOffsetError{Offset: o}
		}
	}
	return (i+1)*9 + (j+1)*3 + (k + 1), nil
}

// Neighbor describes the exchange with the rank at one offset. For a missing
// neighbor the rank is NoNeighbor and both shared spaces are empty.
type Neighbor struct {
	Offset [3]int
	Rank   int

	sharedOwned   [numEntities]indexspace.IndexSpace
	sharedGhosted [numEntities]indexspace.IndexSpace
}

func (n Neighbor) Exists() bool { return n.Rank != NoNeighbor }

// SharedOwned is the part of the owned data sent to this neighbor
func (n Neighbor) SharedOwned(e Entity) indexspace.IndexSpace { return n.sharedOwned[e] }

// SharedGhosted is the part of the ghost region filled by this neighbor
func (n Neighbor) SharedGhosted(e Entity) indexspace.IndexSpace { return n.sharedGhosted[e] }

// Block is one rank's local view of a GlobalGrid with a uniform halo. Local
// index spaces put the halo first: owned data starts at haloWidth in every
// dimension and the ghosted space starts at zero. A Block is immutable and
// safe for concurrent use.
type Block struct {
	global    *GlobalGrid
	haloWidth int

	owned   [numEntities]indexspace.IndexSpace
	ghosted [numEntities]indexspace.IndexSpace

	// Indexed by OffsetIndex; the center slot is unused
	neighbors [27]Neighbor
}

// NewBlock computes and caches all index spaces and neighbor ranks of this
// rank for the given halo width. The halo may not be wider than the local
// cell count along any dimension, since ghosts only come from the 26 direct
// neighbors; a wider halo is a ConfigurationError.
func NewBlock(g *GlobalGrid, haloWidth int) (*Block, error) {
	if haloWidth < 0 {
		return nil, &ConfigurationError{Dim: -1,
			Reason: fmt.Sprintf("negative halo width %d", haloWidth)}
	}
	for d := 0; d < 3; d++ {
		if haloWidth > g.LocalNumCell(d) {
			return nil, &ConfigurationError{Dim: d,
				Reason: fmt.Sprintf("halo width %d exceeds the %d local cells",
					haloWidth, g.LocalNumCell(d))}
		}
	}

	b := &Block{global: g, haloWidth: haloWidth}
	for _, e := range Entities {
		var (
			min, ownedMax, ghostedMax [3]int
			layer                     = e.boundaryLayer()
		)
		for d := 0; d < 3; d++ {
			local := g.LocalNumCell(d)
			min[d] = haloWidth
			ownedMax[d] = haloWidth + local + layer
			// Owned extent plus 2h, plus the node layer the high ghost
			// strip carries
			ghostedMax[d] = (local + layer) + 2*haloWidth + layer
		}
		var err error
		if b.owned[e], err = indexspace.New(min, ownedMax); err != nil {
			return nil, fmt.Errorf("%s owned space: %w", e, err)
		}
		if b.ghosted[e], err = indexspace.FromExtents(ghostedMax); err != nil {
			return nil, fmt.Errorf("%s ghosted space: %w", e, err)
		}
	}

	for _, o := range Offsets {
		idx, _ := OffsetIndex(o[0], o[1], o[2])
		n := Neighbor{Offset: o, Rank: b.resolveNeighbor(o)}
		if n.Exists() {
			for _, e := range Entities {
				var err error
				if n.sharedOwned[e], err = b.sharedSpace(e, o, ownedStrip); err != nil {
					return nil, fmt.Errorf("%s shared owned space %v: %w", e, o, err)
				}
				if n.sharedGhosted[e], err = b.sharedSpace(e, o, ghostStrip); err != nil {
					return nil, fmt.Errorf("%s shared ghosted space %v: %w", e, o, err)
				}
			}
		}
		b.neighbors[idx] = n
	}
	return b, nil
}

// resolveNeighbor finds the rank at offset o. Each dimension is checked on
// its own: crossing any non-periodic physical boundary means no neighbor,
// whatever the other dimensions do.
func (b *Block) resolveNeighbor(o [3]int) int {
	g := b.global
	var coords [3]int
	for d := 0; d < 3; d++ {
		if !g.IsPeriodic(d) {
			if o[d] == -1 && g.OnLowBoundary(d) {
				return NoNeighbor
			}
			if o[d] == 1 && g.OnHighBoundary(d) {
				return NoNeighbor
			}
		}
		coords[d] = g.DimBlockID(d) + o[d]
	}
	rank, ok := g.Comm().RankOf(coords)
	if !ok {
		return NoNeighbor
	}
	return rank
}

type stripKind int

const (
	ownedStrip stripKind = iota // owned data adjacent to the neighbor
	ghostStrip                  // ghost slots the neighbor fills
)

// sharedSpace builds the exchange range toward offset o. Along a dimension
// with zero offset the range spans the owned extent. Otherwise it is a strip
// haloWidth deep on the neighbor's side, widened by the node boundary layer
// where the shared boundary node sits: the low end of the owned range and
// the high ghost strip.
func (b *Block) sharedSpace(e Entity, o [3]int, kind stripKind) (indexspace.IndexSpace, error) {
	var (
		owned    = b.owned[e]
		h        = b.haloWidth
		layer    = e.boundaryLayer()
		min, max [3]int
	)
	for d := 0; d < 3; d++ {
		switch {
		case o[d] == 0:
			min[d], max[d] = owned.Min(d), owned.Max(d)
		case o[d] == -1 && kind == ownedStrip:
			min[d], max[d] = owned.Min(d), owned.Min(d)+h+layer
		case o[d] == 1 && kind == ownedStrip:
			min[d], max[d] = owned.Max(d)-h, owned.Max(d)
		case o[d] == -1 && kind == ghostStrip:
			min[d], max[d] = 0, h
		case o[d] == 1 && kind == ghostStrip:
			min[d], max[d] = owned.Max(d), owned.Max(d)+h+layer
		}
	}
	return indexspace.New(min, max)
}

// Global is the grid this block was cut from
func (b *Block) Global() *GlobalGrid { return b.global }

func (b *Block) HaloWidth() int { return b.haloWidth }

func (b *Block) CellSize() float64 { return b.global.CellSize() }

// LowCorner is the physical coordinate of the owned region's origin
func (b *Block) LowCorner(dim int) float64 { return b.global.LocalLowCorner(dim) }

// GhostedLowCorner is the physical coordinate of the ghosted region's origin
func (b *Block) GhostedLowCorner(dim int) float64 {
	return b.LowCorner(dim) - b.CellSize()*float64(b.haloWidth)
}

// OwnedIndexSpace is the local range of data this rank owns
func (b *Block) OwnedIndexSpace(e Entity) indexspace.IndexSpace { return b.owned[e] }

// GhostedIndexSpace is the owned range padded by the halo on every side
func (b *Block) GhostedIndexSpace(e Entity) indexspace.IndexSpace { return b.ghosted[e] }

// NeighborRank is the rank at offset (i,j,k), or NoNeighbor across a
// non-periodic boundary
func (b *Block) NeighborRank(i, j, k int) (int, error) {
	n, err := b.Neighbor(i, j, k)
	if err != nil {
		return NoNeighbor, err
	}
	return n.Rank, nil
}

// SharedOwnedIndexSpace is the owned range sent to the neighbor at offset
// (i,j,k). It is empty when there is no neighbor.
func (b *Block) SharedOwnedIndexSpace(e Entity, i, j, k int) (indexspace.IndexSpace, error) {
	n, err := b.Neighbor(i, j, k)
	if err != nil {
		return indexspace.Empty(), err
	}
	return n.SharedOwned(e), nil
}

// SharedGhostedIndexSpace is the ghost range filled by the neighbor at
// offset (i,j,k). It is empty when there is no neighbor.
func (b *Block) SharedGhostedIndexSpace(e Entity, i, j, k int) (indexspace.IndexSpace, error) {
	n, err := b.Neighbor(i, j, k)
	if err != nil {
		return indexspace.Empty(), err
	}
	return n.SharedGhosted(e), nil
}

// Neighbor returns the cached record for offset (i,j,k)
func (b *Block) Neighbor(i, j, k int) (Neighbor, error) {
	idx, err := OffsetIndex(i, j, k)
	if err != nil {
		return Neighbor{Rank: NoNeighbor}, err
	}
	return b.neighbors[idx], nil
}

// Neighbors returns all 26 neighbor records in the order of Offsets
func (b *Block) Neighbors() []Neighbor {
	out := make([]Neighbor, 0, len(Offsets))
	for _, o := range Offsets {
		idx, _ := OffsetIndex(o[0], o[1], o[2])
		out = append(out, b.neighbors[idx])
	}
	return out
}
