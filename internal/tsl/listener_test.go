package tsl

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/switcher"
	"github.com/tallyops/cutlog/internal/testutil/testlog"
	"github.com/tallyops/cutlog/internal/tsl/wire"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListenerFeedsDecoder(t *testing.T) {
	state := switcher.NewState()
	dec := NewDecoder(state, func(event.Event) {}, DefaultConfig(), testlog.Logger(t))
	l := NewListener("127.0.0.1:0", dec, testlog.Logger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	waitFor(t, func() bool { return l.Addr() != nil }, "listener bind")

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(wire.EncodeUMD5(1, true, false, "1:ME1PGM:CAM 1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool {
		src, ok := state.ProgramSource("ME1PGM")
		return ok && src.Index == 1
	}, "decoded program source")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestListenerReplacesActiveConnection(t *testing.T) {
	state := switcher.NewState()
	dec := NewDecoder(state, func(event.Event) {}, DefaultConfig(), testlog.Logger(t))
	l := NewListener("127.0.0.1:0", dec, testlog.Logger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	waitFor(t, func() bool { return l.Addr() != nil }, "listener bind")

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	first.Write(wire.EncodeUMD5(1, true, false, "1:ME1PGM:CAM 1"))
	waitFor(t, func() bool { _, ok := state.ProgramSource("ME1PGM"); return ok }, "first connection decode")

	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	// The fresh connection resets bus state.
	waitFor(t, func() bool { _, ok := state.ProgramSource("ME1PGM"); return !ok }, "reset on replacement")

	second.Write(wire.EncodeUMD5(2, true, false, "2:ME1PGM:CAM 2"))
	waitFor(t, func() bool {
		src, ok := state.ProgramSource("ME1PGM")
		return ok && src.Index == 2
	}, "second connection decode")

	// The replaced connection reads EOF once the listener closes it.
	first.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	if _, err := first.Read(buf); err == nil {
		t.Fatalf("superseded connection should be closed")
	}
}
