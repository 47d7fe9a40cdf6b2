package main

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPflag resets the global pflag state between runs, matching the
// teacher's scripts_test.go bodge for commands built around os.Args/pflag
// globals rather than a testable argument-parsing function.
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

func Test_dpp_led(t *testing.T) {
	setupPflag([]string{"dpp-led", "0x0F"})

	output := captureStdout(t, main)

	assert.Contains(t, output, "type: LED")
	assert.Contains(t, output, "led_mask: 15")
}
