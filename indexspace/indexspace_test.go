package indexspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSpace_Extents(t *testing.T) {
	s, err := New([3]int{2, 2, 2}, [3]int{12, 7, 3})
	require.NoError(t, err)

	assert.Equal(t, 10, s.Extent(I))
	assert.Equal(t, 5, s.Extent(J))
	assert.Equal(t, 1, s.Extent(K))
	assert.Equal(t, 50, s.Size())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, "[2:12, 2:7, 2:3]", s.String())
}

func TestIndexSpace_Degenerate(t *testing.T) {
	s, err := New([3]int{0, 4, 0}, [3]int{5, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Size())
	assert.True(t, s.IsEmpty())

	assert.True(t, Empty().IsEmpty())

	_, err = New([3]int{0, 5, 0}, [3]int{5, 4, 5})
	assert.Error(t, err)
}

func TestIndexSpace_Contains(t *testing.T) {
	s, _ := FromExtents([3]int{4, 4, 4})
	assert.True(t, s.Contains(0, 0, 0))
	assert.True(t, s.Contains(3, 3, 3))
	assert.False(t, s.Contains(4, 0, 0))
	assert.False(t, s.Contains(0, -1, 0))

	sub, _ := New([3]int{1, 1, 1}, [3]int{4, 2, 3})
	assert.True(t, s.ContainsSpace(sub))
	out, _ := New([3]int{1, 1, 1}, [3]int{5, 2, 3})
	assert.False(t, s.ContainsSpace(out))
	assert.True(t, s.ContainsSpace(Empty()))
}

func TestIndexSpace_Indices(t *testing.T) {
	s, _ := FromExtents([3]int{3, 4, 5})
	assert.Equal(t, 0, s.LinearIndex(0, 0, 0))
	assert.Equal(t, 1, s.LinearIndex(0, 0, 1))
	assert.Equal(t, 5, s.LinearIndex(0, 1, 0))
	assert.Equal(t, 20, s.LinearIndex(1, 0, 0))
	assert.Equal(t, s.Size()-1, s.LinearIndex(2, 3, 4))

	sub, _ := New([3]int{1, 2, 3}, [3]int{2, 4, 5})
	idx, err := s.Indices(sub)
	require.NoError(t, err)
	assert.Equal(t, []int{33, 34, 38, 39}, idx)

	_, err = sub.Indices(s)
	assert.Error(t, err)
}

func TestIndexSpace_Congruent(t *testing.T) {
	a, _ := New([3]int{0, 0, 0}, [3]int{2, 3, 4})
	b, _ := New([3]int{10, 5, 1}, [3]int{12, 8, 5})
	c, _ := New([3]int{10, 5, 1}, [3]int{12, 8, 6})
	assert.True(t, a.Congruent(b))
	assert.False(t, a.Congruent(c))
}
