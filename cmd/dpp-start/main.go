// Command dpp-start issues a Start wire message (spec.md §6):
// start <flash|continuous> <reflective|transmissive> <frequency> <src_mask> <led_mask>
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
		fmt.Fprintf(os.Stderr, "Usage: %s <flash|continuous> <reflective|transmissive> <frequency> <src_mask> <led_mask>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	args := pflag.Args()
	if *help || len(args) != 5 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var flashMode byte
	switch args[0] {
	case "flash":
		flashMode = 1
	case "continuous":
		flashMode = 0
	default:
		fmt.Fprintf(os.Stderr, "%s: emission mode must be flash or continuous, got %q\n", os.Args[0], args[0])
		os.Exit(1)
	}

	var detectionMode byte
	switch args[1] {
	case "reflective":
		detectionMode = 0
	case "transmissive":
		detectionMode = 1
	default:
		fmt.Fprintf(os.Stderr, "%s: detection mode must be reflective or transmissive, got %q\n", os.Args[0], args[1])
		os.Exit(1)
	}

	frequency, err := strconv.ParseUint(args[2], 0, 16)
	if err != nil {
		fail(args[2], err)
	}
	srcMask, err := strconv.ParseUint(args[3], 0, 16)
	if err != nil {
		fail(args[3], err)
	}
	ledMask, err := strconv.ParseUint(args[4], 0, 16)
	if err != nil {
		fail(args[4], err)
	}

	msg := dpp.Message{Type: dpp.MsgStart, Start: &dpp.StartMsg{
		DetectionMode: detectionMode, FlashMode: flashMode,
		Frequency: uint16(frequency), SrcMask: uint16(srcMask), LEDMask: uint16(ledMask),
	}}
	text, err := dpp.EncodeText(msg)
	if err != nil {
		fail("encode", err)
	}
	fmt.Print(text)

	buf, err := dpp.Encode(nil, msg)
	if err != nil {
		fail("encode", err)
	}
	os.Stdout.Write(buf)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s: %v\n", os.Args[0], what, err)
	os.Exit(1)
}
