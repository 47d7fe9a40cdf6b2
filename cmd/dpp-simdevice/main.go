// Command dpp-simdevice emulates the device side of the wire protocol
// over a pty: it accepts SourceConfig/ChannelConfig/Start/Abort, replies
// with Response, and streams synthetic SampleData frames at the
// requested frequency, playing the role cmd/tnctest plays for exercising
// AX.25 connected mode end-to-end over a loopback transport.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/creack/pty"
	"github.com/doismellburning/dpp/dpp"
	"github.com/spf13/pflag"
)

func main() {
	channels := pflag.IntSliceP("channels", "c", []int{0}, "Channel numbers to simulate sample data for.")
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dpp-simdevice: pty.Open: %v\n", err)
		os.Exit(1)
	}
	defer ptmx.Close()
	fmt.Printf("dpp-simdevice: serving on %s\n", tty.Name())

	frequencyHz := 1000.0
	active := false

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	var sampleCounter uint32

	ticker := time.NewTicker(time.Second / time.Duration(frequencyHz))
	defer ticker.Stop()

	ptmx.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, _ := ptmx.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				msg, consumed, err := dpp.Decode(buf)
				if err != nil {
					break
				}
				buf = buf[consumed:]
				switch msg.Type {
				case dpp.MsgStart:
					active = true
					frequencyHz = float64(msg.Start.Frequency)
					ticker.Reset(time.Second / time.Duration(frequencyHz))
					writeResponse(ptmx, dpp.MsgStart, dpp.ErrSuccess)
				case dpp.MsgAbort:
					active = false
					writeResponse(ptmx, dpp.MsgAbort, dpp.ErrSuccess)
				case dpp.MsgSourceConfig:
					writeResponse(ptmx, dpp.MsgSourceConfig, dpp.ErrSuccess)
				case dpp.MsgChannelConfig:
					writeResponse(ptmx, dpp.MsgChannelConfig, dpp.ErrSuccess)
				}
			}
		}

		select {
		case <-ticker.C:
			if !active {
				continue
			}
			for _, ch := range *channels {
				sampleCounter++
				sample := dpp.NewSampleData16(byte(ch), []uint16{uint16(sampleCounter % 4096)})
				out, _ := dpp.Encode(nil, dpp.Message{Type: dpp.MsgSampleData16, SampleData: sample})
				ptmx.Write(out)
			}
		default:
		}

		ptmx.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	}
}

func writeResponse(w interface{ Write([]byte) (int, error) }, to dpp.MessageType, code dpp.ErrorCode) {
	out, err := dpp.Encode(nil, dpp.Message{Type: dpp.MsgResponse, Response: &dpp.ResponseMsg{ResponseTo: to, ErrorCode: code}})
	if err != nil {
		return
	}
	w.Write(out)
}
