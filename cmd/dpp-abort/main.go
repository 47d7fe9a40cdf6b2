// Command dpp-abort issues an Abort wire message (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/doismellburning/dpp/dpp"
	"github.com/spf13/pflag"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", os.Args[0])
		pflag.PrintDefaults()
	}
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	msg := dpp.Message{Type: dpp.MsgAbort, Abort: &dpp.AbortMsg{}}
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
