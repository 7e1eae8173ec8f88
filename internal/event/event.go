package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of production event types.
type Kind string

const (
	KindProgramCut       Kind = "program-cut"
	KindTransition       Kind = "transition"
	KindKeyerOn          Kind = "keyer-on"
	KindKeyerOff         Kind = "keyer-off"
	KindSlideChange      Kind = "slide-change"
	KindFadeToBlack      Kind = "fade-to-black"
	KindRecordStart      Kind = "record-start"
	KindRecordStop       Kind = "record-stop"
	KindConnectionChange Kind = "connection-change"
	KindFileTransfer     Kind = "file-transfer"
)

// Payload is the variant data for one event kind. Each concrete payload
// carries only the fields that exist for its kind.
type Payload interface {
	Kind() Kind
}

// ProgramCut is a director-authored program source change on a bus.
type ProgramCut struct {
	SourceIndex int    `json:"source_index"`
	SourceName  string `json:"source_name"`
	BusName     string `json:"bus_name"`
}

func (ProgramCut) Kind() Kind { return KindProgramCut }

// Transition is an auto/mix transition on an ME, with the resulting program
// source when the producer knows it.
type Transition struct {
	ME          int    `json:"me"`
	SourceIndex int    `json:"source_index,omitempty"`
	SourceName  string `json:"source_name,omitempty"`
	BusName     string `json:"bus_name,omitempty"`
}

func (Transition) Kind() Kind { return KindTransition }

// KeyerOn reports a keyer cut or auto transition to on-air.
type KeyerOn struct {
	ME    int `json:"me"`
	Keyer int `json:"keyer"`
}

func (KeyerOn) Kind() Kind { return KindKeyerOn }

// KeyerOff reports a keyer leaving air.
type KeyerOff struct {
	ME    int `json:"me"`
	Keyer int `json:"keyer"`
}

func (KeyerOff) Kind() Kind { return KindKeyerOff }

// SlideChange comes from the presentation-polling collaborator.
type SlideChange struct {
	Presentation string `json:"presentation"`
	SlideIndex   int    `json:"slide_index"`
	SlideText    string `json:"slide_text"`
	MachineName  string `json:"machine_name"`
}

func (SlideChange) Kind() Kind { return KindSlideChange }

// FadeToBlack reports the program output fading to black.
type FadeToBlack struct {
	ME int `json:"me"`
}

func (FadeToBlack) Kind() Kind { return KindFadeToBlack }

// RecordStart comes from the recorder-control collaborator.
type RecordStart struct {
	ClipName string `json:"clip_name"`
}

func (RecordStart) Kind() Kind { return KindRecordStart }

// RecordStop comes from the recorder-control collaborator.
type RecordStop struct {
	ClipName string `json:"clip_name"`
}

func (RecordStop) Kind() Kind { return KindRecordStop }

// ConnectionChange reports a service transport going up or down.
type ConnectionChange struct {
	Service   string `json:"service"`
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}

func (ConnectionChange) Kind() Kind { return KindConnectionChange }

// FileTransfer comes from the file-transfer collaborator.
type FileTransfer struct {
	FileName        string `json:"file_name"`
	FileSize        int64  `json:"file_size"`
	DestinationPath string `json:"destination_path"`
}

func (FileTransfer) Kind() Kind { return KindFileTransfer }

// Event is one immutable production event. Events are the only contract
// between the protocol decoders and the timeline reconstruction.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Timecode  string    `json:"timecode,omitempty"`
	Type      Kind      `json:"type"`
	Payload   Payload   `json:"payload"`
}

// New stamps a payload with a fresh ID and the given instant.
func New(at time.Time, payload Payload) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: at,
		Type:      payload.Kind(),
		Payload:   payload,
	}
}

// WithTimecode returns a copy of e carrying a display timecode string.
func (e Event) WithTimecode(tc string) Event {
	e.Timecode = tc
	return e
}
