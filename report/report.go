// Package report summarizes a decomposition, one row per rank.
package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/notargets/GridBlock/grid"
	"github.com/notargets/GridBlock/partitions"
)

// Row describes the block of one rank
type Row struct {
	Rank       int     `csv:"rank"`
	CoordI     int     `csv:"coord_i"`
	CoordJ     int     `csv:"coord_j"`
	CoordK     int     `csv:"coord_k"`
	CellsI     int     `csv:"cells_i"`
	CellsJ     int     `csv:"cells_j"`
	CellsK     int     `csv:"cells_k"`
	OffsetI    int     `csv:"offset_i"`
	OffsetJ    int     `csv:"offset_j"`
	OffsetK    int     `csv:"offset_k"`
	LowX       float64 `csv:"low_x"`
	LowY       float64 `csv:"low_y"`
	LowZ       float64 `csv:"low_z"`
	Neighbors  int     `csv:"neighbors"`
	SendCells  int     `csv:"send_cells"`
	RecvCells  int     `csv:"recv_cells"`
	OwnedCells int     `csv:"owned_cells"`
}

const rowInts = 12

func localInts(b *grid.Block) []int {
	g := b.Global()
	coords := g.Comm().Coords()
	v := make([]int, 0, rowInts)
	v = append(v, coords[:]...)
	for d := 0; d < 3; d++ {
		v = append(v, g.LocalNumCell(d))
	}
	for d := 0; d < 3; d++ {
		v = append(v, g.GlobalOffset(d))
	}
	var neighbors, send, recv int
	for _, n := range b.Neighbors() {
		if !n.Exists() {
			continue
		}
		neighbors++
		send += n.SharedOwned(grid.Cell).Size()
		recv += n.SharedGhosted(grid.Cell).Size()
	}
	return append(v, neighbors, send, recv)
}

// Collect gathers the rows of all ranks, ordered by rank. It is collective
// over the block's Cartesian context.
func Collect(b *grid.Block) ([]Row, error) {
	g := b.Global()
	all, err := g.Comm().AllGatherInts(localInts(b))
	if err != nil {
		return nil, fmt.Errorf("gathering report rows: %w", err)
	}

	rows := make([]Row, len(all))
	for rank, v := range all {
		if len(v) != rowInts {
			return nil, fmt.Errorf("rank %d reported %d values, want %d", rank, len(v), rowInts)
		}
		low := func(d int) float64 {
			return g.LowCorner(d) + g.CellSize()*float64(v[6+d])
		}
		rows[rank] = Row{
			Rank:       rank,
			CoordI:     v[0],
			CoordJ:     v[1],
			CoordK:     v[2],
			CellsI:     v[3],
			CellsJ:     v[4],
			CellsK:     v[5],
			OffsetI:    v[6],
			OffsetJ:    v[7],
			OffsetK:    v[8],
			LowX:       low(0),
			LowY:       low(1),
			LowZ:       low(2),
			Neighbors:  v[9],
			SendCells:  v[10],
			RecvCells:  v[11],
			OwnedCells: v[3] * v[4] * v[5],
		}
	}
	return rows, nil
}

// Summary computes load balance statistics over the owned cells of the rows
func Summary(rows []Row) partitions.PartitionStats {
	cells := make([]int, len(rows))
	for i, r := range rows {
		cells[i] = r.OwnedCells
	}
	return partitions.Statistics(cells)
}

// WriteCSV writes the rows with a header line
func WriteCSV(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
