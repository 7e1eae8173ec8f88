package xmeml

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/tallyops/cutlog/internal/timecode"
	"github.com/tallyops/cutlog/internal/timeline"
)

// Version is the xmeml schema version the consuming editor validates.
const Version = "4"

const header = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE xmeml>\n"

type document struct {
	XMLName  xml.Name `xml:"xmeml"`
	Version  string   `xml:"version,attr"`
	Sequence sequence `xml:"sequence"`
}

type sequence struct {
	ID       string      `xml:"id,attr"`
	Name     string      `xml:"name"`
	Duration int         `xml:"duration"`
	Rate     rate        `xml:"rate"`
	Timecode seqTimecode `xml:"timecode"`
	Media    media       `xml:"media"`
	Markers  []marker    `xml:"marker"`
}

type rate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type seqTimecode struct {
	Rate          rate   `xml:"rate"`
	String        string `xml:"string"`
	Frame         int    `xml:"frame"`
	DisplayFormat string `xml:"displayformat"`
}

type media struct {
	Video video `xml:"video"`
	Audio audio `xml:"audio"`
}

type video struct {
	Format format  `xml:"format"`
	Tracks []track `xml:"track"`
}

type audio struct {
	Tracks []track `xml:"track"`
}

type format struct {
	SampleCharacteristics sampleCharacteristics `xml:"samplecharacteristics"`
}

type sampleCharacteristics struct {
	Rate   rate `xml:"rate"`
	Width  int  `xml:"width"`
	Height int  `xml:"height"`
}

type track struct {
	Name  string     `xml:"name,omitempty"`
	Clips []clipitem `xml:"clipitem"`
}

type clipitem struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name"`
	Duration int      `xml:"duration"`
	Rate     rate     `xml:"rate"`
	Start    int      `xml:"start"`
	End      int      `xml:"end"`
	In       int      `xml:"in"`
	Out      int      `xml:"out"`
	File     *fileRef `xml:"file,omitempty"`
}

type fileRef struct {
	ID       string     `xml:"id,attr"`
	Name     string     `xml:"name,omitempty"`
	PathURL  string     `xml:"pathurl,omitempty"`
	Rate     *rate      `xml:"rate,omitempty"`
	Duration int        `xml:"duration,omitempty"`
	Media    *fileMedia `xml:"media,omitempty"`
}

type fileMedia struct {
	Video *struct{} `xml:"video,omitempty"`
	Audio *struct{} `xml:"audio,omitempty"`
}

type marker struct {
	Comment string `xml:"comment"`
	Name    string `xml:"name"`
	In      int    `xml:"in"`
	Out     int    `xml:"out"`
}

// builder assembles the document with deterministic clip and file IDs.
type builder struct {
	rec      timeline.Reconstruction
	settings timeline.Settings
	rate     rate
	clipSeq  int
	fileSeq  int
	fileIDs  map[string]string // camera file path -> id, first use carries the definition
}

// Serialize renders the reconstruction as a complete interchange document.
// The output is a pure function of its inputs: calling it twice with the
// same reconstruction and settings yields byte-identical documents.
func Serialize(rec timeline.Reconstruction, s timeline.Settings) ([]byte, error) {
	b := &builder{
		rec:      rec,
		settings: s,
		rate:     rate{Timebase: rec.Timebase, NTSC: boolWord(rec.NTSC)},
		fileIDs:  make(map[string]string),
	}
	doc := document{
		Version:  Version,
		Sequence: b.buildSequence(),
	}
	body, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("xmeml: marshal: %w", err)
	}
	out := make([]byte, 0, len(header)+len(body)+1)
	out = append(out, header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func boolWord(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (b *builder) buildSequence() sequence {
	name := b.settings.SequenceName
	if name == "" {
		name = "Reconstructed Program"
	}
	displayFormat := "NDF"
	if b.rec.DropFrame {
		displayFormat = "DF"
	}

	videoTracks := []track{b.programTrack()}
	videoTracks = append(videoTracks, b.isoTracks()...)
	videoTracks = append(videoTracks, b.graphicsTrack())

	audioTracks := make([]track, 0, len(videoTracks))
	for _, vt := range videoTracks {
		audioTracks = append(audioTracks, b.mirrorAudio(vt))
	}

	return sequence{
		ID:       "sequence-1",
		Name:     name,
		Duration: b.rec.Duration,
		Rate:     b.rate,
		Timecode: seqTimecode{
			Rate:          b.rate,
			String:        timecode.FormatString(b.rec.StartOffset, b.settings.FrameRate, b.rec.DropFrame),
			Frame:         b.rec.StartOffset,
			DisplayFormat: displayFormat,
		},
		Media: media{
			Video: video{
				Format: format{SampleCharacteristics: sampleCharacteristics{
					Rate:   b.rate,
					Width:  b.settings.Width,
					Height: b.settings.Height,
				}},
				Tracks: videoTracks,
			},
			Audio: audio{Tracks: audioTracks},
		},
		Markers: b.markers(),
	}
}

// programTrack carries the reconstructed cut sequence. Source in/out use the
// raw session-relative frames: the underlying program recording spans the
// whole session.
func (b *builder) programTrack() track {
	offset := b.rec.StartOffset
	tr := track{Name: "Program"}
	for _, seg := range b.rec.Program {
		clip := b.newClip(seg.SourceName, seg.Start+offset, seg.End+offset, seg.Start, seg.End)
		clip.File = b.fileFor(seg.Camera)
		tr.Clips = append(tr.Clips, clip)
	}
	return tr
}

// isoTracks lays one full-session clip per configured camera, timeline
// in/out equal to source in/out.
func (b *builder) isoTracks() []track {
	offset := b.rec.StartOffset
	tracks := make([]track, 0, len(b.settings.Cameras))
	for _, cam := range b.settings.Cameras {
		clip := b.newClip(cam.Name, offset, offset+b.rec.Duration, offset, offset+b.rec.Duration)
		clip.File = b.fileFor(cam)
		tracks = append(tracks, track{Name: cam.Name + " ISO", Clips: []clipitem{clip}})
	}
	return tracks
}

// graphicsTrack carries keyed graphics clips. A keyer left open at the end
// of the session is extended to session end when the settings ask for it,
// dropped otherwise.
func (b *builder) graphicsTrack() track {
	offset := b.rec.StartOffset
	tr := track{Name: "Graphics"}
	segments := b.rec.Graphics
	if b.settings.ExtendOpenKeyers {
		for _, open := range b.rec.OpenKeyers {
			if b.rec.Duration > open.Start {
				segments = append(segments, timeline.GraphicsSegment{
					Keyer: open.Keyer,
					Label: open.Label,
					Start: open.Start,
					End:   b.rec.Duration,
				})
			}
		}
	}
	for _, seg := range segments {
		clip := b.newClip(seg.Label, seg.Start+offset, seg.End+offset, 0, seg.End-seg.Start)
		tr.Clips = append(tr.Clips, clip)
	}
	return tr
}

// mirrorAudio duplicates a video track's geometry for the paired audio.
func (b *builder) mirrorAudio(vt track) track {
	at := track{Name: vt.Name}
	for _, clip := range vt.Clips {
		mirrored := b.newClip(clip.Name, clip.Start, clip.End, clip.In, clip.Out)
		if clip.File != nil {
			mirrored.File = &fileRef{ID: clip.File.ID}
		}
		at.Clips = append(at.Clips, mirrored)
	}
	return at
}

func (b *builder) markers() []marker {
	offset := b.rec.StartOffset
	out := make([]marker, 0, len(b.rec.Markers))
	for _, m := range b.rec.Markers {
		out = append(out, marker{
			Comment: m.Comment,
			Name:    m.Name,
			In:      m.Frame + offset,
			Out:     -1,
		})
	}
	return out
}

func (b *builder) newClip(name string, start, end, in, out int) clipitem {
	b.clipSeq++
	return clipitem{
		ID:       fmt.Sprintf("clipitem-%d", b.clipSeq),
		Name:     name,
		Duration: end - start,
		Rate:     b.rate,
		Start:    start,
		End:      end,
		In:       in,
		Out:      out,
	}
}

// fileFor returns the file reference for a camera. The first reference
// carries the full definition; later ones carry only the id.
func (b *builder) fileFor(cam timeline.CameraAssignment) *fileRef {
	key := cam.FilePath
	if key == "" {
		key = fmt.Sprintf("placeholder-%d", cam.SourceIndex)
	}
	if id, ok := b.fileIDs[key]; ok {
		return &fileRef{ID: id}
	}
	b.fileSeq++
	id := fmt.Sprintf("file-%d", b.fileSeq)
	b.fileIDs[key] = id
	ref := &fileRef{
		ID:       id,
		Name:     cam.Name,
		Rate:     &rate{Timebase: b.rate.Timebase, NTSC: b.rate.NTSC},
		Duration: b.rec.Duration,
		Media:    &fileMedia{Video: &struct{}{}, Audio: &struct{}{}},
	}
	if cam.FilePath != "" {
		ref.PathURL = pathURL(cam.FilePath)
	}
	return ref
}

func pathURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
