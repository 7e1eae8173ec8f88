package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/timecode"
)

var (
	ErrBadFrameRate = errors.New("timeline: frame rate must be positive")
	ErrBadSession   = errors.New("timeline: session start not set")
)

// CameraAssignment maps a stable source index to a display name and the
// recorded ISO file for that camera.
type CameraAssignment struct {
	SourceIndex int
	Name        string
	FilePath    string
}

// KeyerSource describes what drives a keyer's content.
type KeyerSource string

const (
	KeyerSourcePresentation KeyerSource = "presentation"
	KeyerSourceGraphics     KeyerSource = "graphics"
)

// KeyerAssignment maps a keyer number to a label and source kind.
type KeyerAssignment struct {
	Number int
	Label  string
	Source KeyerSource
}

// Settings configures one reconstruction pass. The assignment tables are
// read-only for the duration of the pass.
type Settings struct {
	SequenceName  string
	FrameRate     float64
	Width         int
	Height        int
	StartTimecode string
	DropFrame     bool
	SessionStart  time.Time
	SessionEnd    time.Time
	Cameras       []CameraAssignment
	Keyers        []KeyerAssignment

	// ExtendOpenKeyers controls whether a keyer still up at the end of
	// the event list is extended to session end or dropped. Applied by
	// the serializer, not here.
	ExtendOpenKeyers bool
}

// ProgramSegment is a contiguous range of the program track assigned to one
// source.
type ProgramSegment struct {
	SourceIndex int
	SourceName  string
	Camera      CameraAssignment
	Start       int // session-relative frames
	End         int
	Placeholder bool // no camera configured for the index
}

// GraphicsSegment is one keyed graphics clip, one per slide while keyed.
type GraphicsSegment struct {
	Keyer int
	Label string
	Start int
	End   int
}

// OpenKeyer is a keyer still up when the event list ended. The serializer
// decides whether to extend or drop it.
type OpenKeyer struct {
	Keyer int
	Label string
	Start int
}

// Marker annotates a single frame with human-readable text.
type Marker struct {
	Frame   int
	Name    string
	Comment string
}

// Reconstruction is the full derived geometry for one session.
type Reconstruction struct {
	Timebase    int
	NTSC        bool
	DropFrame   bool // effective: requested AND supported by the rate
	StartOffset int  // frames, from the start timecode
	Duration    int  // session length in frames
	Program     []ProgramSegment
	Graphics    []GraphicsSegment
	OpenKeyers  []OpenKeyer
	Markers     []Marker
}

// Build derives segments and markers from a chronological event list.
// Events missing required payload fields are logged and skipped; an empty
// event list yields a valid, empty reconstruction.
func Build(events []event.Event, s Settings, log zerolog.Logger) (Reconstruction, error) {
	if s.FrameRate <= 0 {
		return Reconstruction{}, fmt.Errorf("%w: %v", ErrBadFrameRate, s.FrameRate)
	}
	if s.SessionStart.IsZero() {
		return Reconstruction{}, ErrBadSession
	}

	startOffset := 0
	if s.StartTimecode != "" {
		frames, err := timecode.ParseString(s.StartTimecode, s.FrameRate)
		if err != nil {
			return Reconstruction{}, fmt.Errorf("timeline: start timecode: %w", err)
		}
		startOffset = frames
	}

	rec := Reconstruction{
		Timebase:    timecode.Timebase(s.FrameRate),
		NTSC:        timecode.IsNTSC(s.FrameRate),
		DropFrame:   s.DropFrame && timecode.SupportsDropFrame(s.FrameRate),
		StartOffset: startOffset,
	}

	end := s.SessionEnd
	if end.IsZero() && len(events) > 0 {
		end = events[len(events)-1].Timestamp
	}
	if !end.IsZero() {
		rec.Duration = timecode.DateToFrames(end, s.SessionStart, s.FrameRate)
	}

	frameOf := func(e event.Event) int {
		return timecode.DateToFrames(e.Timestamp, s.SessionStart, s.FrameRate)
	}

	rec.Program = buildProgram(events, s, frameOf, rec.Duration, log)
	rec.Graphics, rec.OpenKeyers = buildGraphics(events, s, frameOf, log)
	rec.Markers = buildMarkers(events, frameOf)
	return rec, nil
}

type cutPoint struct {
	frame       int
	sourceIndex int
	sourceName  string
}

// buildProgram turns {program-cut, transition} events into contiguous
// segments. Each segment ends where the next begins; the last runs to the
// session duration. Zero-length segments are dropped.
func buildProgram(events []event.Event, s Settings, frameOf func(event.Event) int, duration int, log zerolog.Logger) []ProgramSegment {
	cameras := make(map[int]CameraAssignment, len(s.Cameras))
	for _, cam := range s.Cameras {
		cameras[cam.SourceIndex] = cam
	}

	var cuts []cutPoint
	for _, e := range events {
		switch p := e.Payload.(type) {
		case event.ProgramCut:
			if p.SourceIndex <= 0 {
				log.Warn().Str("event_id", e.ID).Msg("program cut without source index, skipped")
				continue
			}
			cuts = append(cuts, cutPoint{frame: frameOf(e), sourceIndex: p.SourceIndex, sourceName: p.SourceName})
		case event.Transition:
			if p.SourceIndex <= 0 {
				log.Warn().Str("event_id", e.ID).Msg("transition without resulting source, skipped")
				continue
			}
			cuts = append(cuts, cutPoint{frame: frameOf(e), sourceIndex: p.SourceIndex, sourceName: p.SourceName})
		}
	}

	segments := make([]ProgramSegment, 0, len(cuts))
	for i, cut := range cuts {
		endFrame := duration
		if i+1 < len(cuts) {
			endFrame = cuts[i+1].frame
		}
		if endFrame <= cut.frame {
			continue // replaced before lasting a single frame
		}
		cam, ok := cameras[cut.sourceIndex]
		placeholder := !ok
		if placeholder {
			// Never lose a cut to unmapped configuration.
			name := cut.sourceName
			if name == "" {
				name = fmt.Sprintf("Source %d", cut.sourceIndex)
			}
			cam = CameraAssignment{SourceIndex: cut.sourceIndex, Name: name}
		}
		segments = append(segments, ProgramSegment{
			SourceIndex: cut.sourceIndex,
			SourceName:  cam.Name,
			Camera:      cam,
			Start:       cut.frame,
			End:         endFrame,
			Placeholder: placeholder,
		})
	}
	return segments
}

type keyerState struct {
	assignment KeyerAssignment
	on         bool
	start      int
	slideSet   bool
	slide      event.SlideChange
}

func (k *keyerState) label() string {
	if k.slideSet {
		if k.slide.SlideText != "" {
			return k.slide.SlideText
		}
		if k.slide.Presentation != "" {
			return fmt.Sprintf("%s %d", k.slide.Presentation, k.slide.SlideIndex)
		}
	}
	if k.assignment.Label != "" {
		return k.assignment.Label
	}
	return fmt.Sprintf("Keyer %d", k.assignment.Number)
}

// buildGraphics runs the per-keyer state machine: keyer-on opens a segment,
// keyer-off closes it, and a slide change while keyed closes the current
// segment and opens the next, producing one graphics clip per slide on air.
// Keyers still open at the end are returned, not auto-closed.
func buildGraphics(events []event.Event, s Settings, frameOf func(event.Event) int, log zerolog.Logger) ([]GraphicsSegment, []OpenKeyer) {
	states := make(map[int]*keyerState, len(s.Keyers))
	order := make([]int, 0, len(s.Keyers))
	for _, ka := range s.Keyers {
		states[ka.Number] = &keyerState{assignment: ka}
		order = append(order, ka.Number)
	}
	stateFor := func(number int) *keyerState {
		st, ok := states[number]
		if !ok {
			st = &keyerState{assignment: KeyerAssignment{Number: number}}
			states[number] = st
			order = append(order, number)
		}
		return st
	}
	presentationKeyer := func() int {
		for _, ka := range s.Keyers {
			if ka.Source == KeyerSourcePresentation {
				return ka.Number
			}
		}
		return 1
	}

	var segments []GraphicsSegment
	for _, e := range events {
		frame := frameOf(e)
		switch p := e.Payload.(type) {
		case event.KeyerOn:
			st := stateFor(p.Keyer)
			if !st.on {
				st.on = true
				st.start = frame
			}

		case event.KeyerOff:
			st := stateFor(p.Keyer)
			if st.on && frame > st.start {
				segments = append(segments, GraphicsSegment{
					Keyer: p.Keyer,
					Label: st.label(),
					Start: st.start,
					End:   frame,
				})
			}
			st.on = false

		case event.SlideChange:
			if p.Presentation == "" && p.SlideText == "" {
				log.Warn().Str("event_id", e.ID).Msg("slide change without content, skipped")
				continue
			}
			number := presentationKeyer()
			st := stateFor(number)
			if st.on {
				if frame > st.start {
					segments = append(segments, GraphicsSegment{
						Keyer: number,
						Label: st.label(),
						Start: st.start,
						End:   frame,
					})
				}
				st.start = frame
			}
			st.slide = p
			st.slideSet = true
		}
	}

	var open []OpenKeyer
	for _, number := range order {
		st := states[number]
		if st.on {
			open = append(open, OpenKeyer{Keyer: number, Label: st.label(), Start: st.start})
		}
	}
	return segments, open
}

// buildMarkers emits one marker per keyer and slide event.
func buildMarkers(events []event.Event, frameOf func(event.Event) int) []Marker {
	var markers []Marker
	for _, e := range events {
		switch p := e.Payload.(type) {
		case event.KeyerOn:
			markers = append(markers, Marker{
				Frame:   frameOf(e),
				Name:    fmt.Sprintf("Keyer %d on", p.Keyer),
				Comment: fmt.Sprintf("Keyer %d up on ME %d", p.Keyer, p.ME),
			})
		case event.KeyerOff:
			markers = append(markers, Marker{
				Frame:   frameOf(e),
				Name:    fmt.Sprintf("Keyer %d off", p.Keyer),
				Comment: fmt.Sprintf("Keyer %d down on ME %d", p.Keyer, p.ME),
			})
		case event.SlideChange:
			comment := p.SlideText
			if comment == "" {
				comment = p.Presentation
			}
			markers = append(markers, Marker{
				Frame:   frameOf(e),
				Name:    fmt.Sprintf("Slide %d", p.SlideIndex),
				Comment: comment,
			})
		}
	}
	return markers
}
