package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/GridBlock/comm"
	"github.com/notargets/GridBlock/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collectAll(t *testing.T, size int, ranksPerDim [3]int) [][]Row {
	t.Helper()
	w, err := comm.NewWorld(size)
	require.NoError(t, err)

	out := make([][]Row, size)
	err = w.Run(context.Background(), func(ctx context.Context, c comm.Comm) error {
		g, err := grid.NewGlobalGrid(c, ranksPerDim, [3]bool{true, true, true},
			[3]float64{0, 0, 0}, [3]float64{10, 8, 6}, 1)
		if err != nil {
			return err
		}
		defer g.Close()
		b, err := grid.NewBlock(g, 1)
		if err != nil {
			return err
		}
		rows, err := Collect(b)
		if err != nil {
			return err
		}
		out[c.Rank()] = rows
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCollect(t *testing.T) {
	all := collectAll(t, 8, [3]int{2, 2, 2})

	// Every rank sees the same report
	for r := 1; r < len(all); r++ {
		if diff := cmp.Diff(all[0], all[r]); diff != "" {
			t.Errorf("rank %d report differs (-rank0 +rank%d):\n%s", r, r, diff)
		}
	}

	rows := all[0]
	require.Len(t, rows, 8)
	want := []Row{
		{Rank: 0, CellsI: 5, CellsJ: 4, CellsK: 3,
			Neighbors: 26, SendCells: 150, RecvCells: 150, OwnedCells: 60},
		{Rank: 7, CoordI: 1, CoordJ: 1, CoordK: 1, CellsI: 5, CellsJ: 4, CellsK: 3,
			OffsetI: 5, OffsetJ: 4, OffsetK: 3, LowX: 5, LowY: 4, LowZ: 3,
			Neighbors: 26, SendCells: 150, RecvCells: 150, OwnedCells: 60},
	}
	if diff := cmp.Diff(want, []Row{rows[0], rows[7]}); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, rows[1].CoordK)
	assert.Equal(t, 3.0, rows[1].LowZ)

	stats := Summary(rows)
	assert.Equal(t, 8, stats.NumPartitions)
	assert.Equal(t, 60, stats.MinCells)
	assert.Equal(t, 60, stats.MaxCells)
	assert.InDelta(t, 1.0, stats.Imbalance, 1e-12)
}

func TestCollect_Uneven(t *testing.T) {
	rows := collectAll(t, 3, [3]int{3, 1, 1})[0]
	got := make([]int, len(rows))
	for i, r := range rows {
		got[i] = r.CellsI
	}
	assert.Equal(t, []int{4, 3, 3}, got)
	assert.Equal(t, []float64{0, 4, 7}, []float64{rows[0].LowX, rows[1].LowX, rows[2].LowX})

	stats := Summary(rows)
	assert.Equal(t, 4*8*6, stats.MaxCells)
	assert.Equal(t, 3*8*6, stats.MinCells)
}

func TestWriteCSV(t *testing.T) {
	rows := collectAll(t, 2, [3]int{2, 1, 1})[0]

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "rank,coord_i,coord_j,coord_k,cells_i"))
	assert.True(t, strings.HasSuffix(lines[0], "owned_cells"))
	assert.True(t, strings.HasPrefix(lines[2], "1,1,0,0,5,8,6,5,0,0,5,0,0,"))
}
