package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notargets/GridBlock/halo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const smallGrid = `
domain:
  low_corner: [0, 0, 0]
  high_corner: [1.2, 0.8, 0.6]
  cell_size: 0.1
  periodic: [true, false, true]
decomposition:
  ranks: 4
  halo_width: 1
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDecompose_Stdout(t *testing.T) {
	cfg := writeFile(t, "grid.yaml", smallGrid)
	out, err := execute(t, "decompose", "--config", cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "rank,"))
	// 4 ranks factor as 2x2x1 over 12x8x6 cells
	assert.True(t, strings.HasPrefix(lines[1], "0,0,0,0,6,4,6,"), lines[1])
}

func TestDecompose_RanksFlagAndCSVFile(t *testing.T) {
	cfg := writeFile(t, "grid.yaml", smallGrid)
	csvPath := filepath.Join(t.TempDir(), "blocks.csv")
	_, err := execute(t, "decompose", "-c", cfg, "--ranks", "6", "--csv", csvPath)
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 7)
}

func TestDecompose_Errors(t *testing.T) {
	cfg := writeFile(t, "grid.yaml", smallGrid)

	_, err := execute(t, "decompose", "-c", cfg, "--ranks", "0")
	assert.Error(t, err)

	// 13 ranks line up along the first axis, which has only 12 cells
	_, err = execute(t, "decompose", "-c", cfg, "--ranks", "13")
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", smallGrid+"\n  partitioner: manual\n  ranks_per_dim: [3, 1, 1]\n")
	_, err = execute(t, "decompose", "-c", bad)
	assert.Error(t, err)

	// 12 cells over 5 ranks split 3,3,2,2,2
	skewed := writeFile(t, "skewed.yaml", smallGrid+"  max_imbalance: 1.01\n")
	_, err = execute(t, "decompose", "-c", skewed, "--ranks", "5")
	assert.Error(t, err)

	_, err = execute(t, "decompose", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHaloSizing(t *testing.T) {
	plans := []*halo.Plan{
		{MaxSendPoints: 4, MaxRecvPoints: 6, SendBuffer: make([]float64, 10)},
		{MaxSendPoints: 7, MaxRecvPoints: 2, SendBuffer: make([]float64, 12)},
	}
	s := haloSizing(plans)
	assert.Equal(t, 7, s.maxSend)
	assert.Equal(t, 6, s.maxRecv)
	assert.Equal(t, 22, s.total)
}
