// Command dpp-host attaches to a device transport and drives the
// acquisition controller: calibrate, start, or stop, mirroring
// cmd/samoyed-appserver's attach-and-drive-session-state role for the
// teacher's AGWPE client.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/doismellburning/dpp/dpp"
	"github.com/spf13/pflag"
)

func main() {
	host := pflag.StringP("host", "H", "localhost", "Device transport host.")
	port := pflag.StringP("port", "p", "7000", "Device transport TCP port.")
	configPath := pflag.StringP("config", "c", "", "Declarative pipeline config file (YAML).")
	setupIdx := pflag.IntP("setup", "s", 0, "Setup index to run.")
	frequency := pflag.Float64P("frequency", "f", 1000, "Acquisition frequency, Hz.")
	calibrate := pflag.Bool("calibrate", false, "Run calibration instead of a pipeline setup.")
	runFor := pflag.Duration("duration", 10*time.Second, "How long to acquire before stopping.")
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.Default()

	conn, err := net.Dial("tcp", net.JoinHostPort(*host, *port))
	if err != nil {
		logger.Error("dial device transport failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	controller := dpp.NewController(conn, logger)

	if *calibrate {
		if err := controller.StartCalibration(*frequency, nil, nil, nil, 0, 0, nil, nil); err != nil {
			logger.Error("start calibration failed", "err", err)
			os.Exit(1)
		}
	} else {
		if *configPath == "" {
			fmt.Fprintln(os.Stderr, "dpp-host: --config is required unless --calibrate is set")
			os.Exit(1)
		}
		lib, err := dpp.LoadLibraryFile(*configPath)
		if err != nil {
			logger.Error("load config failed", "err", err)
			os.Exit(1)
		}
		registry := dpp.NewRegistry()
		sinkFor := func(g dpp.GraphSink) dpp.GraphSinkHandle { return consoleSink{label: g.DisplayName} }
		if err := controller.StartAcquisition(lib, *setupIdx, registry, *frequency, 0, 0, nil, nil, sinkFor); err != nil {
			logger.Error("start acquisition failed", "err", err)
			os.Exit(1)
		}
	}

	readLoop(conn, controller, logger, *runFor)
}

// consoleSink prints every value it receives, standing in for a GUI
// graph widget (spec.md §1 explicitly places the GUI out of scope).
type consoleSink struct{ label string }

func (s consoleSink) Push(v dpp.Value) {
	fmt.Printf("%s: %v\n", s.label, v.AsUint32())
}

func readLoop(conn net.Conn, controller *dpp.Controller, logger *log.Logger, runFor time.Duration) {
	deadline := time.Now().Add(runFor)
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	for time.Now().Before(deadline) {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				msg, consumed, decErr := dpp.Decode(buf)
				if decErr != nil {
					break
				}
				if herr := controller.HandleInbound(msg); herr != nil {
					logger.Warn("inbound handling error", "err", herr)
				}
				buf = buf[consumed:]
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
				continue
			}
			logger.Warn("read error", "err", err)
			break
		}
	}

	if err := controller.Stop(); err != nil {
		logger.Warn("stop failed", "err", err)
	}
}
