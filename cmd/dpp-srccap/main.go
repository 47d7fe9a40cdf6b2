// Command dpp-srccap builds a SourceCapReq wire message asking for a
// source's analog front-end capabilities and writes it to stdout (textual
// form, then binary encoding); it does not read a reply.
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
		fmt.Fprintf(os.Stderr, "Usage: %s <source>\n", os.Args[0])
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

	source, err := strconv.ParseUint(pflag.Arg(0), 0, 8)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid source %q: %v\n", os.Args[0], pflag.Arg(0), err)
		os.Exit(1)
	}

	msg := dpp.Message{Type: dpp.MsgSourceCapReq, SourceCapReq: &dpp.SourceCapReqMsg{Source: byte(source)}}
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
