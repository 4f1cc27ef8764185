// Command asebalink-monitor connects to a Thymio-II over TCP or serial,
// waits for its handshake to complete, and prints its variable catalog and
// live connection events until interrupted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-aseba/asebalink"
	"github.com/go-aseba/asebalink/transport"
	"github.com/rs/zerolog"
)

func main() {
	tcpFlag := flag.String("tcp", "", "Connect over TCP to host:port instead of a serial port")
	portFlag := flag.String("port", "", "Serial port device path (default: autodetect)")
	verboseFlag := flag.Bool("v", false, "Log every inbound/outbound message")
	waitFlag := flag.Duration("wait", 5*time.Second, "How long to wait for the first handshake")

	flag.Usage = printUsage
	flag.Parse()

	var t asebalink.Transport
	var err error
	if *tcpFlag != "" {
		t, err = transport.TCP(*tcpFlag)
	} else {
		var opts []transport.SerialOption
		if *portFlag != "" {
			opts = append(opts, transport.WithSerialPort(*portFlag))
		}
		t, err = transport.Serial(opts...)
	}
	if err != nil {
		log.Fatalf("failed to open transport: %v", err)
	}

	logger := zerolog.Nop()
	if *verboseFlag {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	session, err := asebalink.NewSession(t, asebalink.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	defer session.Close()

	session.SetCallbacks(asebalink.Callbacks{
		OnConnectionChanged: func(nodeID uint16, active bool) {
			fmt.Printf("node %d active=%v\n", nodeID, active)
		},
		OnCommError: func(err error) {
			fmt.Fprintf(os.Stderr, "comm error: %v\n", err)
		},
	})

	if err := session.WaitForHandshake(1, *waitFlag); err != nil {
		log.Fatalf("no node found: %v", err)
	}

	nodeID, _ := session.OneRemoteNodeID()
	vars, err := session.VariableDescriptions(nodeID)
	if err != nil {
		log.Fatalf("failed to read variable catalog: %v", err)
	}
	for _, v := range vars {
		fmt.Printf("%-24s offset=%-4d size=%d\n", v.Name, v.Offset, v.Size)
	}

	select {}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: asebalink-monitor [-tcp host:port | -port device] [-wait duration] [-v]")
	flag.PrintDefaults()
}
