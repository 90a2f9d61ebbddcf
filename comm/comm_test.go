package comm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorld_InvalidSize(t *testing.T) {
	_, err := NewWorld(0)
	assert.Error(t, err)
}

func TestWorld_AllGather(t *testing.T) {
	w, err := NewWorld(4)
	require.NoError(t, err)

	results := make([][][]int, 4)
	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		// Two rounds to exercise generation turnover
		for round := 0; round < 2; round++ {
			all, err := c.AllGatherInts([]int{c.Rank(), round})
			if err != nil {
				return err
			}
			results[c.Rank()] = all
		}
		return c.Barrier()
	})
	require.NoError(t, err)

	for r := 0; r < 4; r++ {
		require.Len(t, results[r], 4)
		for src := 0; src < 4; src++ {
			assert.Equal(t, []int{src, 1}, results[r][src])
		}
	}
}

func TestWorld_SendRecvRing(t *testing.T) {
	const size = 5
	w, err := NewWorld(size)
	require.NoError(t, err)

	got := make([]float64, size)
	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		next := (c.Rank() + 1) % size
		prev := (c.Rank() + size - 1) % size
		if err := c.Send(ctx, next, 7, []float64{float64(c.Rank())}); err != nil {
			return err
		}
		buf := make([]float64, 1)
		if err := c.Recv(ctx, prev, 7, buf); err != nil {
			return err
		}
		got[c.Rank()] = buf[0]
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 1, 2, 3}, got)
}

func TestWorld_RecvLengthMismatch(t *testing.T) {
	c := Serial()
	ctx := context.Background()
	require.NoError(t, c.Send(ctx, 0, 1, []float64{1, 2, 3}))
	err := c.Recv(ctx, 0, 1, make([]float64, 2))
	assert.Error(t, err)

	assert.Error(t, c.Send(ctx, 3, 1, nil))
}

func TestWorld_AbortReleasesBlockedRanks(t *testing.T) {
	w, err := NewWorld(3)
	require.NoError(t, err)

	boom := errors.New("boom")
	var mu sync.Mutex
	var released []error
	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		if c.Rank() == 0 {
			return boom
		}
		berr := c.Barrier()
		mu.Lock()
		released = append(released, berr)
		mu.Unlock()
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	for _, e := range released {
		assert.ErrorIs(t, e, ErrAborted)
	}
}

func TestWorld_SingleUse(t *testing.T) {
	w, err := NewWorld(2)
	require.NoError(t, err)
	require.NoError(t, w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		return c.Barrier()
	}))

	called := false
	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrWorldUsed)
	assert.False(t, called)

	// A failed world stays unusable too
	w, err = NewWorld(1)
	require.NoError(t, err)
	require.Error(t, w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		return errors.New("boom")
	}))
	assert.ErrorIs(t, w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		return nil
	}), ErrWorldUsed)
}

func TestSerial(t *testing.T) {
	c := Serial()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	require.NoError(t, c.Barrier())
	all, err := c.AllGatherInts([]int{7, 8})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{7, 8}}, all)

	// Independent calls do not share a world
	require.NoError(t, c.Send(context.Background(), 0, 3, []float64{1}))
	assert.NoError(t, Serial().Send(context.Background(), 0, 3, []float64{2}))
	buf := make([]float64, 1)
	require.NoError(t, c.Recv(context.Background(), 0, 3, buf))
	assert.Equal(t, []float64{1}, buf)
}

func TestCart_CoordsAndRanks(t *testing.T) {
	w, err := NewWorld(12)
	require.NoError(t, err)

	dims := [3]int{3, 2, 2}
	periodic := [3]bool{true, false, true}
	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		cart, err := NewCart(c, dims, periodic)
		if err != nil {
			return err
		}
		defer cart.Free()
		if got, ok := cart.RankOf(cart.Coords()); !ok || got != c.Rank() {
			t.Errorf("rank %d: RankOf(Coords()) = %d, %v", c.Rank(), got, ok)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCart_RankOfWraps(t *testing.T) {
	cart := &Cart{dims: [3]int{3, 2, 2}, periodic: [3]bool{true, false, true}}

	assert.Equal(t, [3]int{0, 0, 0}, cart.CoordsOf(0))
	assert.Equal(t, [3]int{0, 0, 1}, cart.CoordsOf(1))
	assert.Equal(t, [3]int{0, 1, 0}, cart.CoordsOf(2))
	assert.Equal(t, [3]int{1, 0, 0}, cart.CoordsOf(4))
	assert.Equal(t, [3]int{2, 1, 1}, cart.CoordsOf(11))

	r, ok := cart.RankOf([3]int{-1, 0, 0})
	assert.True(t, ok)
	assert.Equal(t, 8, r)

	r, ok = cart.RankOf([3]int{0, 0, 2})
	assert.True(t, ok)
	assert.Equal(t, 0, r)

	_, ok = cart.RankOf([3]int{0, -1, 0})
	assert.False(t, ok)
	_, ok = cart.RankOf([3]int{0, 2, 0})
	assert.False(t, ok)
}

func TestCart_ShapeErrors(t *testing.T) {
	_, err := NewCart(Serial(), [3]int{2, 1, 1}, [3]bool{})
	assert.Error(t, err)

	_, err = NewCart(Serial(), [3]int{0, 1, 1}, [3]bool{})
	assert.Error(t, err)
}

func TestCart_MismatchedArguments(t *testing.T) {
	w, err := NewWorld(2)
	require.NoError(t, err)

	err = w.Run(context.Background(), func(ctx context.Context, c Comm) error {
		periodic := [3]bool{c.Rank() == 0, false, false}
		_, err := NewCart(c, [3]int{2, 1, 1}, periodic)
		return err
	})
	var mismatch *TopologyMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestCart_FreeIsIdempotent(t *testing.T) {
	cart, err := NewCart(Serial(), [3]int{1, 1, 1}, [3]bool{true, true, true})
	require.NoError(t, err)
	cart.Free()
	cart.Free()
	assert.True(t, cart.Freed())
	assert.Error(t, cart.Send(context.Background(), 0, 0, []float64{1}))
}
