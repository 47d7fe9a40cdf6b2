// Command dpp-chancfg issues a ChannelConfig wire message (spec.md §6).
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
		fmt.Fprintf(os.Stderr, "Usage: %s <channel> <source> [offset] [shift] [sample32]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	args := pflag.Args()
	if *help || len(args) < 2 || len(args) > 5 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	channel, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		fail(err)
	}
	source, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		fail(err)
	}
	cfg := &dpp.ChannelConfigMsg{Channel: byte(channel), Source: byte(source)}
	if len(args) > 2 {
		offset, err := strconv.ParseUint(args[2], 0, 32)
		if err != nil {
			fail(err)
		}
		cfg.Offset = uint32(offset)
	}
	if len(args) > 3 {
		shift, err := strconv.ParseUint(args[3], 0, 8)
		if err != nil {
			fail(err)
		}
		cfg.Shift = byte(shift)
	}
	if len(args) > 4 {
		sample32, err := strconv.ParseUint(args[4], 0, 8)
		if err != nil {
			fail(err)
		}
		cfg.Sample32 = byte(sample32)
	}

	msg := dpp.Message{Type: dpp.MsgChannelConfig, ChannelConfig: cfg}
	text, err := dpp.EncodeText(msg)
	if err != nil {
		fail(err)
	}
	fmt.Print(text)

	buf, err := dpp.Encode(nil, msg)
	if err != nil {
		fail(err)
	}
	os.Stdout.Write(buf)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
	os.Exit(1)
}
