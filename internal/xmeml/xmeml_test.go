package xmeml

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/testutil/testlog"
	"github.com/tallyops/cutlog/internal/timeline"
)

var sessionStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func settings() timeline.Settings {
	return timeline.Settings{
		SequenceName:  "Sunday AM",
		FrameRate:     29.97,
		Width:         1920,
		Height:        1080,
		StartTimecode: "01:00:00;00",
		DropFrame:     true,
		SessionStart:  sessionStart,
		SessionEnd:    sessionStart.Add(60 * time.Second),
		Cameras: []timeline.CameraAssignment{
			{SourceIndex: 1, Name: "CAM 1", FilePath: "/media/cam1.mp4"},
			{SourceIndex: 2, Name: "CAM 2", FilePath: "/media/cam2.mp4"},
		},
		Keyers: []timeline.KeyerAssignment{
			{Number: 1, Label: "Lower Thirds", Source: timeline.KeyerSourceGraphics},
		},
		ExtendOpenKeyers: true,
	}
}

func fixtureEvents() []event.Event {
	at := func(offset time.Duration, p event.Payload) event.Event {
		return event.New(sessionStart.Add(offset), p)
	}
	return []event.Event{
		at(0, event.ProgramCut{SourceIndex: 1, SourceName: "CAM 1", BusName: "ME1PGM"}),
		at(10*time.Second, event.ProgramCut{SourceIndex: 2, SourceName: "CAM 2", BusName: "ME1PGM"}),
		at(20*time.Second, event.KeyerOn{ME: 1, Keyer: 1}),
		at(30*time.Second, event.KeyerOff{ME: 1, Keyer: 1}),
	}
}

func build(t *testing.T, events []event.Event, s timeline.Settings) timeline.Reconstruction {
	t.Helper()
	rec, err := timeline.Build(events, s, testlog.Logger(t))
	if err != nil {
		t.Fatalf("build reconstruction: %v", err)
	}
	return rec
}

func TestSerializeStructure(t *testing.T) {
	s := settings()
	rec := build(t, fixtureEvents(), s)
	out, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE xmeml>\n")) {
		t.Fatalf("missing xml header/doctype")
	}

	var doc document
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output must be well-formed xml: %v", err)
	}
	if doc.Version != "4" {
		t.Fatalf("xmeml version: %q", doc.Version)
	}
	seq := doc.Sequence
	if seq.Rate.Timebase != 30 || seq.Rate.NTSC != "TRUE" {
		t.Fatalf("sequence rate: %+v", seq.Rate)
	}
	if seq.Timecode.String != "01:00:00;00" || seq.Timecode.Frame != 107892 || seq.Timecode.DisplayFormat != "DF" {
		t.Fatalf("sequence timecode: %+v", seq.Timecode)
	}
	if seq.Media.Video.Format.SampleCharacteristics.Width != 1920 {
		t.Fatalf("resolution: %+v", seq.Media.Video.Format)
	}

	// Program + two ISO tracks + graphics, with mirrored audio.
	if len(seq.Media.Video.Tracks) != 4 {
		t.Fatalf("video tracks: %d", len(seq.Media.Video.Tracks))
	}
	if len(seq.Media.Audio.Tracks) != 4 {
		t.Fatalf("audio tracks must mirror video: %d", len(seq.Media.Audio.Tracks))
	}

	program := seq.Media.Video.Tracks[0]
	if len(program.Clips) != 2 {
		t.Fatalf("program clips: %d", len(program.Clips))
	}
	first := program.Clips[0]
	if first.Start != 107892 || first.In != 0 {
		t.Fatalf("program clip offsets: start=%d in=%d", first.Start, first.In)
	}
	if first.End != first.Start+(first.Out-first.In) {
		t.Fatalf("clip geometry inconsistent: %+v", first)
	}
	if first.File == nil || !strings.HasPrefix(first.File.PathURL, "file://") {
		t.Fatalf("program clip file: %+v", first.File)
	}

	iso := seq.Media.Video.Tracks[1]
	if len(iso.Clips) != 1 || iso.Clips[0].Start != 107892 || iso.Clips[0].End != 107892+rec.Duration {
		t.Fatalf("iso track geometry: %+v", iso.Clips)
	}
	if iso.Clips[0].In != iso.Clips[0].Start || iso.Clips[0].Out != iso.Clips[0].End {
		t.Fatalf("iso source in/out must equal timeline in/out: %+v", iso.Clips[0])
	}

	if len(seq.Markers) != 2 {
		t.Fatalf("markers: %d", len(seq.Markers))
	}
	if seq.Markers[0].Out != -1 {
		t.Fatalf("marker out must be -1: %+v", seq.Markers[0])
	}
}

func TestSerializeIdempotent(t *testing.T) {
	s := settings()
	rec := build(t, fixtureEvents(), s)
	a, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("first serialize: %v", err)
	}
	b, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("second serialize: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("identical inputs must yield byte-identical output")
	}
}

func TestSerializeEmptySession(t *testing.T) {
	s := settings()
	rec := build(t, nil, s)
	out, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var doc document
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("empty session must still be well-formed: %v", err)
	}
	if len(doc.Sequence.Media.Video.Tracks[0].Clips) != 0 {
		t.Fatalf("empty session must have no program clips")
	}
	if len(doc.Sequence.Markers) != 0 {
		t.Fatalf("empty session must have no markers")
	}
}

func TestOpenKeyerPolicy(t *testing.T) {
	events := []event.Event{
		event.New(sessionStart.Add(20*time.Second), event.KeyerOn{ME: 1, Keyer: 1}),
	}

	s := settings()
	s.ExtendOpenKeyers = true
	rec := build(t, events, s)
	out, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var doc document
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	graphics := doc.Sequence.Media.Video.Tracks[3]
	if len(graphics.Clips) != 1 {
		t.Fatalf("extend policy must close the open keyer at session end, got %d clips", len(graphics.Clips))
	}
	if got := graphics.Clips[0].End - rec.StartOffset; got != rec.Duration {
		t.Fatalf("extended clip must end at session end: %d != %d", got, rec.Duration)
	}

	s.ExtendOpenKeyers = false
	rec = build(t, events, s)
	out, err = Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var dropped document
	if err := xml.Unmarshal(out, &dropped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(dropped.Sequence.Media.Video.Tracks[3].Clips) != 0 {
		t.Fatalf("drop policy must discard the open keyer")
	}
}

func TestFileDefinitionsDeduplicated(t *testing.T) {
	s := settings()
	events := fixtureEvents()
	// CAM 1 appears on the program track and its ISO track; the second
	// reference must carry only the id.
	rec := build(t, events, s)
	out, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if n := bytes.Count(out, []byte("file://localhost")); n != 0 {
		// Path URLs use plain file scheme; this guards the count below.
		t.Fatalf("unexpected localhost urls: %d", n)
	}
	if n := bytes.Count(out, []byte("cam1.mp4")); n != 1 {
		t.Fatalf("cam1 file definition must appear once, got %d", n)
	}
}

func TestPlaceholderCameraSerializesWithoutPath(t *testing.T) {
	s := settings()
	events := []event.Event{
		event.New(sessionStart, event.ProgramCut{SourceIndex: 9, SourceName: "GFX", BusName: "ME1PGM"}),
	}
	rec := build(t, events, s)
	out, err := Serialize(rec, s)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var doc document
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	clip := doc.Sequence.Media.Video.Tracks[0].Clips[0]
	if clip.Name != "GFX" || clip.File == nil || clip.File.PathURL != "" || clip.File.Name != "GFX" {
		t.Fatalf("placeholder clip: %+v file=%+v", clip, clip.File)
	}
}
