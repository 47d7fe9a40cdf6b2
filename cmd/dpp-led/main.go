// Command dpp-led builds an LED wire message and writes it to stdout: first
// its canonical textual form, then its binary encoding.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/doismellburning/dpp/dpp"
	"github.com/spf13/pflag"
)

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint16(v), nil
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <mask>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "mask is the LED bitmask, decimal or 0x-prefixed hex.\n")
		pflag.PrintDefaults()
	}
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	if *help || pflag.NArg() != 1 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	mask, err := parseUint16(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	msg := dpp.Message{Type: dpp.MsgLED, LED: &dpp.LEDMsg{LEDMask: mask}}
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
	if _, err := os.Stdout.Write(buf); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}
