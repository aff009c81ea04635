package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "stress")
	assert.Contains(t, output, "ringpass")
	assert.Contains(t, output, "select-demo")
}

func TestStressCmd_RequiresTopology(t *testing.T) {
	_, err := executeCommand(rootCmd, "stress")
	assert.Error(t, err)
}

func TestSelectDemoCmd_Run(t *testing.T) {
	output, err := executeCommand(rootCmd, "select-demo", "--channels=3")
	require.NoError(t, err)
	assert.Contains(t, output, "select committed intent")
}

func TestRingPassCmd_Run(t *testing.T) {
	output, err := executeCommand(rootCmd, "ringpass",
		"--workers=2", "--buffer-size=1", "--load=0.75", "--duration=50ms")
	require.NoError(t, err)
	assert.Contains(t, output, "PASS")
}

func TestRingPassCmd_MeasureCPU(t *testing.T) {
	output, err := executeCommand(rootCmd, "ringpass",
		"--workers=2", "--buffer-size=1", "--load=0.75", "--duration=50ms", "--measure-cpu")
	require.NoError(t, err)
	assert.Contains(t, output, "cpu time spent:")
	assert.Contains(t, output, "PASS")
}

func TestStressCmd_Run(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "topology-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("2\n0 1\n1 0\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	output, err := executeCommand(rootCmd, "stress",
		"--topology="+f.Name(), "--buffer-size=1", "--timeout="+(2*time.Second).String())
	require.NoError(t, err)
	assert.Contains(t, output, "PASS")
}

func TestStressCmd_MeasureCPU(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "topology-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("2\n0 1\n1 0\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	output, err := executeCommand(rootCmd, "stress",
		"--topology="+f.Name(), "--buffer-size=1", "--timeout="+(2*time.Second).String(), "--measure-cpu")
	require.NoError(t, err)
	assert.Contains(t, output, "cpu time spent:")
	assert.Contains(t, output, "PASS")
}
