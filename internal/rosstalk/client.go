package rosstalk

import (
	"bufio"
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallyops/cutlog/internal/event"
)

// ServiceName identifies this transport in connection-change events.
const ServiceName = "rosstalk"

// Handler receives parsed production events.
type Handler func(event.Event)

// Config controls the RossTalk client connection.
type Config struct {
	Addr    string
	Dialer  net.Dialer
	Backoff BackoffConfig
}

// Client maintains one connection to the switcher's RossTalk port, reading
// CRLF-delimited commands and emitting the events the timeline cares about.
// Connection loss is reported and retried with backoff, never fatal.
type Client struct {
	cfg     Config
	handler Handler
	log     zerolog.Logger
	now     func() time.Time
	rng     *rand.Rand
}

func NewClient(cfg Config, handler Handler, log zerolog.Logger) *Client {
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		log:     log,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run dials and reads until ctx is canceled. Each reconnect attempt waits
// the backoff delay; a successful session resets the attempt counter.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		conn, err := c.cfg.Dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			attempt++
			delay := NextDelay(c.cfg.Backoff, attempt, c.rng)
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("rosstalk dial failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.emit(event.ConnectionChange{Service: ServiceName, Connected: true})
		c.log.Info().Str("addr", c.cfg.Addr).Msg("rosstalk connected")

		err = c.readLines(ctx, conn)
		conn.Close()
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		c.emit(event.ConnectionChange{Service: ServiceName, Connected: false, Detail: detail})
		if ctx.Err() != nil {
			return nil
		}
		c.log.Info().Err(err).Msg("rosstalk connection lost")
	}
}

func (c *Client) readLines(ctx context.Context, conn net.Conn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		c.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Client) handleLine(line string) {
	payload, err := ParseCommand(line)
	if err != nil {
		c.log.Warn().Err(err).Str("line", line).Msg("rosstalk command dropped")
		return
	}
	if payload == nil {
		c.log.Debug().Str("line", line).Msg("rosstalk command ignored")
		return
	}
	c.emit(payload)
}

func (c *Client) emit(payload event.Payload) {
	if c.handler == nil {
		return
	}
	c.handler(event.New(c.now(), payload))
}
