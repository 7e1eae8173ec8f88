package tsl

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/observability"
	"github.com/tallyops/cutlog/internal/switcher"
	"github.com/tallyops/cutlog/internal/tsl/wire"
)

// ServiceName identifies this transport in connection-change events.
const ServiceName = "tsl"

// Phase is the decoder connection lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSuppressing
	PhaseActive
	PhaseDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseSuppressing:
		return "suppressing"
	case PhaseActive:
		return "active"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// Config bounds the decoder's transient-signal suppression.
type Config struct {
	// SuppressionWindow silences program-cut emission after a fresh
	// connection while the device dumps its full tally state.
	SuppressionWindow time.Duration
	// DebounceWindow collapses transition chatter on one bus into a
	// single authored cut.
	DebounceWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		SuppressionWindow: 3 * time.Second,
		DebounceWindow:    300 * time.Millisecond,
	}
}

// Handler receives decoded production events.
type Handler func(event.Event)

// Decoder turns an unbounded tally byte stream into bus-state updates and
// program-cut events. One transport connection feeds it at a time; a new
// connection replaces the old one and restarts the lifecycle from Reset.
type Decoder struct {
	cfg     Config
	state   *switcher.State
	handler Handler
	log     zerolog.Logger
	now     func() time.Time

	mu            sync.Mutex
	phase         Phase
	connID        uint64
	buf           []byte
	suppressUntil time.Time
	lastEmit      map[string]time.Time

	framingResets   uint64
	droppedMessages uint64
}

func NewDecoder(state *switcher.State, handler Handler, cfg Config, log zerolog.Logger) *Decoder {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = DefaultConfig().SuppressionWindow
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	return &Decoder{
		cfg:      cfg,
		state:    state,
		handler:  handler,
		log:      log,
		now:      time.Now,
		lastEmit: make(map[string]time.Time),
	}
}

// Connected starts a fresh connection lifecycle: the bus state is cleared,
// buffered bytes from any superseded connection are discarded, and the
// suppression window restarts. Returns the connection identity that
// subsequent Receive/Disconnected calls must present.
func (d *Decoder) Connected() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	// A still-live connection being replaced never gets its own
	// Disconnected call; close out its lifecycle in the event log first.
	if d.phase == PhaseSuppressing || d.phase == PhaseActive {
		d.emit(event.ConnectionChange{Service: ServiceName, Connected: false, Detail: "superseded"})
	}
	d.connID++
	d.phase = PhaseSuppressing
	d.buf = d.buf[:0]
	d.suppressUntil = d.now().Add(d.cfg.SuppressionWindow)
	d.lastEmit = make(map[string]time.Time)
	d.state.Reset()
	d.emit(event.ConnectionChange{Service: ServiceName, Connected: true})
	return d.connID
}

// Disconnected returns the decoder to the disconnected state. The bus state
// is left intact so readers can show last-known tally. Calls presenting a
// stale connection identity are ignored.
func (d *Decoder) Disconnected(connID uint64, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if connID != d.connID {
		return
	}
	d.phase = PhaseDisconnected
	d.buf = d.buf[:0]
	d.emit(event.ConnectionChange{Service: ServiceName, Connected: false, Detail: detail})
}

// Receive appends bytes from the identified connection and drains every
// complete message currently buffered. Partial messages stay buffered.
// Bytes from a superseded connection are dropped.
func (d *Decoder) Receive(connID uint64, b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if connID != d.connID || d.phase == PhaseDisconnected || d.phase == PhaseIdle {
		return
	}
	d.buf = append(d.buf, b...)
	d.drain()
}

// Phase reports the current lifecycle state.
func (d *Decoder) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Stats reports diagnostic counters: framing-loss resets and dropped
// malformed messages.
func (d *Decoder) Stats() (framingResets, droppedMessages uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framingResets, d.droppedMessages
}

// drain extracts zero or more complete messages from the buffer.
// Caller holds d.mu.
func (d *Decoder) drain() {
	for {
		if len(d.buf) < 2 {
			return
		}
		length := int(binary.LittleEndian.Uint16(d.buf[0:2]))

		if length >= wire.MinPBC && length <= wire.MaxPBC {
			if len(d.buf) < 3 {
				return // need the version byte to classify
			}
			if d.buf[2] != wire.VersionMarker {
				d.resync(length)
				return
			}
			total := length + 2
			if len(d.buf) < total {
				return // wait for the rest of the message
			}
			msg, err := wire.DecodeUMD5(d.buf[:total])
			d.consume(total)
			d.apply(msg, err)
			continue
		}

		if length > wire.MaxPBC {
			// Heuristic UMD 3.1 fallback: no real framing byte exists,
			// a length this large cannot be a 5.0 payload count. A short
			// buffer waits like the 5.0 path does, so chunk boundaries
			// never change what a stream decodes to.
			if len(d.buf) < wire.UMD3MessageLen {
				return
			}
			msg, err := wire.DecodeUMD3(d.buf[:wire.UMD3MessageLen])
			d.consume(wire.UMD3MessageLen)
			d.apply(msg, err)
			continue
		}

		// length below the 5.0 minimum matches neither framing
		d.resync(length)
		return
	}
}

func (d *Decoder) consume(n int) {
	d.buf = d.buf[:copy(d.buf, d.buf[n:])]
}

// resync discards the whole buffer after a framing loss and waits for the
// stream to realign on the next receive.
func (d *Decoder) resync(length int) {
	d.framingResets++
	observability.RecordFramingReset()
	d.log.Warn().Int("length_field", length).Int("buffered", len(d.buf)).
		Msg("tsl framing loss, discarding buffer")
	d.buf = d.buf[:0]
}

// apply feeds one decoded message through the bus state model and emits a
// program-cut event when a real reassignment happens outside the
// suppression and debounce windows.
func (d *Decoder) apply(msg wire.Message, err error) {
	if err != nil {
		d.droppedMessages++
		observability.RecordDroppedMessage()
		d.log.Warn().Err(err).Msg("tsl message dropped")
		return
	}
	observability.RecordTallyMessage(msg.Format.String())

	now := d.now()
	if d.phase == PhaseSuppressing && !now.Before(d.suppressUntil) {
		d.phase = PhaseActive
	}

	bus, changed := d.state.Update(msg.Index, msg.Tally, msg.BusLabel, msg.SourceLabel)
	if !changed || d.phase != PhaseActive {
		return
	}
	if last, ok := d.lastEmit[bus]; ok && now.Sub(last) < d.cfg.DebounceWindow {
		return // state updated above; chatter collapsed into the first cut
	}
	d.lastEmit[bus] = now
	d.emit(event.ProgramCut{
		SourceIndex: msg.Index,
		SourceName:  msg.SourceLabel,
		BusName:     bus,
	})
}

// emit hands a payload to the handler stamped at the decoder clock.
// Caller holds d.mu.
func (d *Decoder) emit(payload event.Payload) {
	if d.handler == nil {
		return
	}
	d.handler(event.New(d.now(), payload))
}
