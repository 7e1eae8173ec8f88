// tslsim is a switcher stand-in for exercising a running cutlogd without
// hardware. It connects to the tally listener as a TCP client and cycles
// program cuts across a small set of labeled sources.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallyops/cutlog/internal/tsl/wire"
)

type source struct {
	index int
	label string
}

var sources = []source{
	{1, "1:ME1PGM:CAM 1"},
	{2, "2:ME1PGM:CAM 2"},
	{3, "3:ME1PGM:CAM 3"},
	{4, "4:ME1PGM:GRAPHICS"},
}

func main() {
	addr := flag.String("addr", "127.0.0.1:5201", "tally listener address")
	interval := flag.Duration("interval", 3*time.Second, "delay between program cuts")
	legacy := flag.Bool("legacy", false, "send fixed-length 3.1 records instead of 5.0")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tslsim: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *addr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	program := 0
	for {
		if err := sendCycle(conn, program, *legacy); err != nil {
			fmt.Fprintf(os.Stderr, "tslsim: send: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("--- program on source %d ---\n\n", sources[program].index)

		select {
		case <-sigc:
			fmt.Println("stopped")
			return
		case <-ticker.C:
		}
		program = (program + 1) % len(sources)
	}
}

// sendCycle reports the full tally state for every source, with exactly one
// on program and the next in rotation on preview.
func sendCycle(conn net.Conn, program int, legacy bool) error {
	for i, src := range sources {
		onProgram := i == program
		onPreview := i == (program+1)%len(sources)

		var msg []byte
		if legacy {
			msg = wire.EncodeUMD3(src.index, onProgram, onPreview, src.label)
		} else {
			msg = wire.EncodeUMD5(src.index, onProgram, onPreview, src.label)
		}
		if _, err := conn.Write(msg); err != nil {
			return err
		}

		state := "---"
		switch {
		case onProgram && onPreview:
			state = "PGM/PVW"
		case onProgram:
			state = "PGM"
		case onPreview:
			state = "PVW"
		}
		fmt.Printf("  source %d: %7s  %s\n", src.index, state, src.label)
	}
	return nil
}
