package rosstalk

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/testutil/testlog"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want event.Payload
	}{
		{"MEAUTO ME:1", event.Transition{ME: 1}},
		{"meauto ME:2", event.Transition{ME: 2}},
		{"KEYCUT ME:1:2", event.KeyerOn{ME: 1, Keyer: 2}},
		{"KEYCUT ME:1:2:OFF", event.KeyerOff{ME: 1, Keyer: 2}},
		{"KEYAUTO ME:2:1", event.KeyerOn{ME: 2, Keyer: 1}},
		{"KEYAUTO ME:2:1:off", event.KeyerOff{ME: 2, Keyer: 1}},
		{"FTB", event.FadeToBlack{ME: 1}},
		{"FTB ME:2", event.FadeToBlack{ME: 2}},
		{"MECUT ME:1", nil},
		{"SELECT PGM:1:IN:3", nil},
		{"XPT vid 1 2", nil},
		{"", nil},
	}
	for _, c := range cases {
		got, err := ParseCommand(c.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", c.line, err)
		}
		if got != c.want {
			t.Fatalf("ParseCommand(%q): got %#v want %#v", c.line, got, c.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand("BOGUS ME:1"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	for _, line := range []string{"MEAUTO", "MEAUTO XX:1", "MEAUTO ME:zero", "KEYCUT ME:1", "KEYCUT ME:1:2:ON", "KEYCUT ME:0:1"} {
		if _, err := ParseCommand(line); !errors.Is(err, ErrBadArgument) {
			t.Fatalf("ParseCommand(%q): expected ErrBadArgument, got %v", line, err)
		}
	}
}

func TestNextDelayGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 500 * time.Millisecond}
	if d := NextDelay(cfg, 1, nil); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := NextDelay(cfg, 2, nil); d != 200*time.Millisecond {
		t.Fatalf("attempt 2: %v", d)
	}
	if d := NextDelay(cfg, 10, nil); d != 500*time.Millisecond {
		t.Fatalf("attempt 10 must cap: %v", d)
	}
	jittered := cfg
	jittered.Jitter = true
	rng := rand.New(rand.NewSource(1))
	d := NextDelay(jittered, 2, rng)
	if d < 100*time.Millisecond || d > 300*time.Millisecond {
		t.Fatalf("jittered delay out of band: %v", d)
	}
}

func TestClientReadsCommandStream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("KEYCUT ME:1:1\r\nMECUT ME:1\r\nKEYCUT ME:1:1:OFF\r\n"))
		conn.Close()
	}()

	var mu sync.Mutex
	var got []event.Event
	client := NewClient(Config{Addr: ln.Addr().String()}, func(e event.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}, testlog.Logger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 4 { // connect + keyer-on + keyer-off + disconnect
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out, got %d events", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Type != event.KindConnectionChange {
		t.Fatalf("first event: %v", got[0].Type)
	}
	if got[1].Type != event.KindKeyerOn || got[2].Type != event.KindKeyerOff {
		t.Fatalf("keyer events: %v %v", got[1].Type, got[2].Type)
	}
	if got[3].Type != event.KindConnectionChange {
		t.Fatalf("expected disconnect event, got %v", got[3].Type)
	}
	cc := got[3].Payload.(event.ConnectionChange)
	if cc.Connected {
		t.Fatalf("final event must report disconnect")
	}
}
