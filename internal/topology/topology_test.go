package topology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	// 3 nodes, fully meshed except 0->2 is absent (-1 => Inf).
	input := `3
0 5 -1
5 0 2
-1 2 0
`
	m, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, m.N)
	assert.Equal(t, 0, m.Get(0, 0))
	assert.Equal(t, 5, m.Get(0, 1))
	assert.Equal(t, Inf, m.Get(0, 2))
	assert.Equal(t, 2, m.Get(1, 2))
}

func TestParse_ZeroNodeCount(t *testing.T) {
	_, err := Parse(strings.NewReader("0\n"))
	assert.Error(t, err)
}

func TestParse_TruncatedInput(t *testing.T) {
	_, err := Parse(strings.NewReader("3\n0 1\n"))
	assert.Error(t, err)
}

func TestFloydWarshall_DirectPath(t *testing.T) {
	m, err := Parse(strings.NewReader("2\n0 3\n3 0\n"))
	require.NoError(t, err)
	sol := FloydWarshall(m)
	assert.Equal(t, 3, sol.Get(0, 1))
	assert.Equal(t, 3, sol.Get(1, 0))
}

func TestFloydWarshall_ShortcutThroughIntermediate(t *testing.T) {
	// 0->1 direct cost 10, but 0->2->1 costs 1+1=2.
	input := `3
0 10 1
1 0 1
1 1 0
`
	m, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	sol := FloydWarshall(m)
	assert.Equal(t, 2, sol.Get(0, 1))
	// m itself is untouched.
	assert.Equal(t, 10, m.Get(0, 1))
}

func TestFloydWarshall_Unreachable(t *testing.T) {
	input := `2
0 -1
-1 0
`
	m, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	sol := FloydWarshall(m)
	assert.Equal(t, Inf, sol.Get(0, 1))
}

func TestMatrix_EqualAndFormat(t *testing.T) {
	a, err := Parse(strings.NewReader("2\n0 -1\n1 0\n"))
	require.NoError(t, err)
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.set(0, 1, 99)
	assert.False(t, a.Equal(b))

	out := a.Format()
	assert.Contains(t, out, "inf")
}

func TestMatrix_FormatRendersInfinity(t *testing.T) {
	m := NewMatrix(2)
	// NewMatrix leaves off-diagonal entries at Inf.
	out := m.Format()
	assert.Contains(t, out, "inf")
	assert.Contains(t, out, "   0")
}
