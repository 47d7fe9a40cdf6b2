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

func Test_dpp_abort(t *testing.T) {
	setupPflag([]string{"dpp-abort"})

	old := os.Stdout
	defer func() { os.Stdout = old }()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	main()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Contains(t, string(out), "type: Abort")
}
