package tsl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Listener accepts tally connections from the switcher and feeds exactly one
// at a time into the decoder. A newly accepted connection replaces the
// active one; the superseded connection is closed and its buffered partial
// messages are discarded by the decoder's fresh lifecycle.
type Listener struct {
	addr string
	dec  *Decoder
	log  zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	active net.Conn
}

func NewListener(addr string, dec *Decoder, log zerolog.Logger) *Listener {
	return &Listener{addr: addr, dec: dec, log: log}
}

// Run listens until ctx is canceled. Returns nil on deliberate shutdown.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("tsl listen on %s: %w", l.addr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	l.log.Info().Str("addr", ln.Addr().String()).Msg("tsl listener up")

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("tsl accept: %w", err)
		}
		l.replaceActive(conn)
		go l.serve(conn)
	}
}

// Addr returns the bound listen address, for tests using port 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close tears down the listener and any active connection.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		l.ln.Close()
	}
	if l.active != nil {
		l.active.Close()
		l.active = nil
	}
}

func (l *Listener) replaceActive(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		l.log.Info().Str("old", l.active.RemoteAddr().String()).
			Str("new", conn.RemoteAddr().String()).
			Msg("tsl connection replaced")
		l.active.Close()
	}
	l.active = conn
}

func (l *Listener) serve(conn net.Conn) {
	connID := l.dec.Connected()
	l.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("tsl connected")

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			l.dec.Receive(connID, buf[:n])
		}
		if err != nil {
			l.dec.Disconnected(connID, err.Error())
			l.log.Info().Err(err).Msg("tsl connection closed")
			l.mu.Lock()
			if l.active == conn {
				l.active = nil
			}
			l.mu.Unlock()
			conn.Close()
			return
		}
	}
}
