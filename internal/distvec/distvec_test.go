package distvec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjcordosi/concurrencylab/internal/topology"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestRun_TriangleConverges(t *testing.T) {
	m, err := topology.Parse(strings.NewReader("3\n0 5 1\n5 0 2\n1 2 0\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Run(ctx, testLogger(), Scenario{Topology: m, BufferSize: 1, Timeout: 4 * time.Second})
	require.NoError(t, err)
	require.True(t, res.Converged, "expected convergence, diff: %s", res.Diff)
	assert.Empty(t, res.Diff)
	assert.True(t, res.Expected.Equal(res.Computed))
	// Shortcut through node 2 beats the direct 0->1 link of 5.
	assert.Equal(t, 3, res.Computed.Get(0, 1))
}

func TestRun_DisconnectedPair(t *testing.T) {
	m, err := topology.Parse(strings.NewReader("2\n0 -1\n-1 0\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Run(ctx, testLogger(), Scenario{Topology: m, BufferSize: 1, Timeout: 4 * time.Second})
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, topology.Inf, res.Computed.Get(0, 1))
}

func TestRun_ZeroCapacityChannels(t *testing.T) {
	m, err := topology.Parse(strings.NewReader("2\n0 1\n1 0\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Run(ctx, testLogger(), Scenario{Topology: m, BufferSize: 0, Timeout: 4 * time.Second})
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, 1, res.Computed.Get(0, 1))
}

func TestRun_SingleNode(t *testing.T) {
	m, err := topology.Parse(strings.NewReader("1\n0\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := Run(ctx, testLogger(), Scenario{Topology: m, BufferSize: 1, Timeout: time.Second})
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, 0, res.Computed.Get(0, 0))
}
