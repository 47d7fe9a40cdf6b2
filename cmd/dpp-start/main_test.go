package main

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func captureStdout(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	defer func() { os.Stdout = old }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	f()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func Test_dpp_start(t *testing.T) {
	setupPflag([]string{"dpp-start", "flash", "reflective", "1000", "0x01", "0x02"})

	output := captureStdout(t, main)

	assert.Contains(t, output, "type: Start")
	assert.Contains(t, output, "frequency: 1000")
	assert.Contains(t, output, "flash_mode: 1")
	assert.Contains(t, output, "detection_mode: 0")
}
