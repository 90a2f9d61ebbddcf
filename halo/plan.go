// Package halo turns a grid block's shared index spaces into flat
// scatter/gather index lists over a ghosted field buffer and moves halo data
// between ranks with them.
package halo

import (
	"fmt"

	"github.com/notargets/GridBlock/grid"
	"github.com/notargets/GridBlock/indexspace"
)

// Mapping describes the exchange with one neighbor
type Mapping struct {
	Offset [3]int // Neighbor offset
	Rank   int    // Neighbor rank

	// Message tags. A message toward offset o carries the tag of o, so the
	// receiver expects the tag of the opposite of its own offset.
	SendTag int
	RecvTag int

	// Positions in the ghosted field buffer
	SendIndices []int // Owned values packed for the neighbor
	RecvIndices []int // Ghost slots filled by the neighbor

	// Location in the contiguous communication buffers
	SendOffset int
	RecvOffset int
}

func (m Mapping) SendCount() int { return len(m.SendIndices) }
func (m Mapping) RecvCount() int { return len(m.RecvIndices) }

// Plan holds all mappings of one rank for one entity type
type Plan struct {
	Entity  grid.Entity
	Rank    int
	Ghosted indexspace.IndexSpace // Layout of the field buffer

	Mappings []Mapping

	// Contiguous communication buffers
	SendBuffer []float64
	RecvBuffer []float64

	MaxSendPoints int
	MaxRecvPoints int
}

// Tag is the message tag used for data sent toward offset o
func Tag(o [3]int) int {
	return (o[0]+1)*9 + (o[1]+1)*3 + (o[2] + 1)
}

// NewPlan builds the exchange plan of block b for entity e. Offsets without
// a neighbor are skipped.
func NewPlan(b *grid.Block, e grid.Entity) (*Plan, error) {
	ghosted := b.GhostedIndexSpace(e)
	p := &Plan{
		Entity:  e,
		Rank:    b.Global().Comm().Rank(),
		Ghosted: ghosted,
	}

	sendOffset, recvOffset := 0, 0
	for _, n := range b.Neighbors() {
		if !n.Exists() {
			continue
		}
		sendIdx, err := ghosted.Indices(n.SharedOwned(e))
		if err != nil {
			return nil, fmt.Errorf("offset %v send indices: %w", n.Offset, err)
		}
		recvIdx, err := ghosted.Indices(n.SharedGhosted(e))
		if err != nil {
			return nil, fmt.Errorf("offset %v recv indices: %w", n.Offset, err)
		}
		opposite := [3]int{-n.Offset[0], -n.Offset[1], -n.Offset[2]}
		m := Mapping{
			Offset:      n.Offset,
			Rank:        n.Rank,
			SendTag:     Tag(n.Offset),
			RecvTag:     Tag(opposite),
			SendIndices: sendIdx,
			RecvIndices: recvIdx,
			SendOffset:  sendOffset,
			RecvOffset:  recvOffset,
		}
		p.Mappings = append(p.Mappings, m)

		sendOffset += m.SendCount()
		recvOffset += m.RecvCount()
		p.MaxSendPoints = max(p.MaxSendPoints, m.SendCount())
		p.MaxRecvPoints = max(p.MaxRecvPoints, m.RecvCount())
	}
	p.SendBuffer = make([]float64, sendOffset)
	p.RecvBuffer = make([]float64, recvOffset)
	return p, nil
}

// RequiresRemoteCommunication reports whether any neighbor is another rank
func (p *Plan) RequiresRemoteCommunication() bool {
	for _, m := range p.Mappings {
		if m.Rank != p.Rank {
			return true
		}
	}
	return false
}

// ValidateSymmetry verifies, over the plans of every rank of a group indexed
// by rank, that each message a rank sends is expected by its receiver with
// the same count
func ValidateSymmetry(plans []*Plan) error {
	type key struct{ sender, receiver, tag int }

	sends := make(map[key]int)
	for sender, p := range plans {
		for _, m := range p.Mappings {
			sends[key{sender, m.Rank, m.SendTag}] = m.SendCount()
		}
	}

	for receiver, p := range plans {
		for _, m := range p.Mappings {
			k := key{m.Rank, receiver, m.RecvTag}
			count, exists := sends[k]
			if !exists {
				return fmt.Errorf("rank %d expects tag %d from %d, but %d doesn't send it",
					receiver, m.RecvTag, m.Rank, m.Rank)
			}
			if count != m.RecvCount() {
				return fmt.Errorf("count mismatch: rank %d sends %d to %d (tag %d), but %d expects %d",
					m.Rank, count, receiver, m.RecvTag, receiver, m.RecvCount())
			}
			delete(sends, k)
		}
	}
	for k := range sends {
		return fmt.Errorf("rank %d sends tag %d to %d, which doesn't receive it",
			k.sender, k.tag, k.receiver)
	}
	return nil
}
