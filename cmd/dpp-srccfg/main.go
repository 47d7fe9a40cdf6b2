// Command dpp-srccfg issues a SourceConfig wire message: source, opamp
// gain/offset, and oversample settings (spec.md §6).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/doismellburning/dpp/dpp"
	"github.com/spf13/pflag"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <source> <gain> <offset> <sw_os> [hw_os] [hw_shift]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	args := pflag.Args()
	if *help || len(args) < 4 || len(args) > 6 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	vals, err := parseUints(args, []int{8, 8, 16, 16, 8, 8})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	cfg := &dpp.SourceConfigMsg{
		Source: byte(vals[0]), OpampGain: byte(vals[1]),
		OpampOffset: uint16(vals[2]), SWOversample: uint16(vals[3]),
	}
	if len(vals) > 4 {
		cfg.HWOversample = byte(vals[4])
	}
	if len(vals) > 5 {
		cfg.HWShift = byte(vals[5])
	}

	msg := dpp.Message{Type: dpp.MsgSourceConfig, SourceConfig: cfg}
	text, err := dpp.EncodeText(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	fmt.Print(text)

	buf, err := dpp.Encode(nil, msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	os.Stdout.Write(buf)
}

func parseUints(args []string, bitSizes []int) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, bitSizes[i])
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}
