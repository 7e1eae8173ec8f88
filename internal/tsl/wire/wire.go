package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tallyops/cutlog/internal/switcher"
)

// Format identifies which wire framing a message arrived in.
type Format int

const (
	FormatUMD5 Format = iota // variable-length, length-prefixed
	FormatUMD3               // fixed 18-byte records
)

func (f Format) String() string {
	if f == FormatUMD3 {
		return "umd3"
	}
	return "umd5"
}

const (
	// VersionMarker is the UMD 5.0 version byte at offset 2.
	VersionMarker byte = 0x00

	// MinPBC and MaxPBC bound the UMD 5.0 payload byte count. The PBC
	// excludes its own two bytes; the smallest real message carries the
	// 10-byte fixed payload with no text.
	MinPBC = 10
	MaxPBC = 1000

	// UMD3MessageLen is the fixed size of one UMD 3.1 record.
	UMD3MessageLen = 18

	umd5FixedLen = 12 // PBC(2) + version + flags + screen(2) + index(2) + control(2) + textlen(2)
	umd3TextLen  = 16
)

var (
	ErrShortMessage = errors.New("wire: message shorter than declared")
	ErrBadLength    = errors.New("wire: payload byte count out of range")
	ErrBadVersion   = errors.New("wire: unexpected version byte")
)

// Message is one decoded tally/label record, normalized across formats.
// Index is 1-based in both formats.
type Message struct {
	Format      Format
	Index       int
	Screen      int
	Tally       switcher.Tally
	BusLabel    string
	SourceLabel string
}

// DecodeControl extracts tally state from a control word. Bits 0-1 carry the
// program tally level, bits 2-3 the preview level; any non-zero level is on.
// Brightness is the max of the two raw levels.
//
// This bit assignment matches observed Carbonite behavior and is kept
// deliberately, even where published protocol documents order the bits
// differently.
func DecodeControl(control uint16) switcher.Tally {
	programLevel := int(control & 0x03)
	previewLevel := int((control >> 2) & 0x03)
	brightness := programLevel
	if previewLevel > brightness {
		brightness = previewLevel
	}
	return switcher.Tally{
		Program:    programLevel > 0,
		Preview:    previewLevel > 0,
		Brightness: brightness,
	}
}

// ParseLabel splits a display label of the form "index:busLabel:sourceLabel".
// The leading index component is redundant (the message's own index field is
// authoritative) and is discarded. Text that does not match the grammar
// becomes the whole source label with no bus; empty text synthesizes a
// "Source N" placeholder.
func ParseLabel(text string, index int) (busLabel, sourceLabel string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Sprintf("Source %d", index)
	}
	parts := strings.SplitN(text, ":", 3)
	if len(parts) == 3 {
		if _, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
		}
	}
	return "", text
}

// DecodeUMD5 parses one complete UMD 5.0 message, including its two PBC
// bytes. buf must hold exactly the message (PBC+2 bytes); callers own
// framing.
func DecodeUMD5(buf []byte) (Message, error) {
	if len(buf) < umd5FixedLen {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(buf))
	}
	pbc := int(binary.LittleEndian.Uint16(buf[0:2]))
	if pbc < MinPBC || pbc > MaxPBC {
		return Message{}, fmt.Errorf("%w: pbc=%d", ErrBadLength, pbc)
	}
	if len(buf) < pbc+2 {
		return Message{}, fmt.Errorf("%w: have %d want %d", ErrShortMessage, len(buf), pbc+2)
	}
	if buf[2] != VersionMarker {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrBadVersion, buf[2])
	}

	screen := int(binary.LittleEndian.Uint16(buf[4:6]))
	index := int(binary.LittleEndian.Uint16(buf[6:8]))
	control := binary.LittleEndian.Uint16(buf[8:10])
	textLen := int(binary.LittleEndian.Uint16(buf[10:12]))
	if umd5FixedLen+textLen > pbc+2 {
		return Message{}, fmt.Errorf("%w: text length %d exceeds payload", ErrShortMessage, textLen)
	}

	text := decodeText(buf[umd5FixedLen : umd5FixedLen+textLen])
	bus, label := ParseLabel(text, index)

	return Message{
		Format:      FormatUMD5,
		Index:       index,
		Screen:      screen,
		Tally:       DecodeControl(control),
		BusLabel:    bus,
		SourceLabel: label,
	}, nil
}

// DecodeUMD3 parses one fixed 18-byte UMD 3.1 record. The wire address is
// 0-based; the returned index is 1-based to line up with UMD 5.0.
func DecodeUMD3(buf []byte) (Message, error) {
	if len(buf) < UMD3MessageLen {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(buf))
	}
	index := int(buf[0]) + 1
	control := uint16(buf[1])
	text := strings.TrimRightFunc(string(buf[2:2+umd3TextLen]), func(r rune) bool {
		return r == ' ' || unicode.IsControl(r)
	})
	bus, label := ParseLabel(text, index)

	return Message{
		Format:      FormatUMD3,
		Index:       index,
		Tally:       DecodeControl(control),
		BusLabel:    bus,
		SourceLabel: label,
	}, nil
}

// decodeText interprets raw label bytes as UTF-8, falling back to UTF-16
// little-endian when the bytes are not usable UTF-8 or trim to nothing.
// Embedded NULs force the fallback: UTF-16LE ASCII is byte-wise valid UTF-8.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) && !bytes.ContainsRune(raw, 0) {
		if s := strings.TrimSpace(string(raw)); s != "" {
			return s
		}
	}
	if len(raw) < 2 {
		return ""
	}
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(raw[i:i+2]))
	}
	return strings.TrimSpace(string(utf16.Decode(units)))
}

// EncodeControl builds a control word from tally state, mirroring
// DecodeControl's bit layout. On flags encode at full brightness.
func EncodeControl(program, preview bool) uint16 {
	var control uint16
	if program {
		control |= 0x03
	}
	if preview {
		control |= 0x03 << 2
	}
	return control
}

// EncodeUMD5 builds one complete UMD 5.0 message including the PBC prefix.
func EncodeUMD5(index int, program, preview bool, text string) []byte {
	textBytes := []byte(text)
	pbc := MinPBC + len(textBytes)
	buf := make([]byte, umd5FixedLen+len(textBytes))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(pbc))
	buf[2] = VersionMarker
	buf[3] = 0x00 // flags
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(index))
	binary.LittleEndian.PutUint16(buf[8:10], EncodeControl(program, preview))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(textBytes)))
	copy(buf[umd5FixedLen:], textBytes)
	return buf
}

// EncodeUMD3 builds one fixed 18-byte UMD 3.1 record. index is 1-based.
func EncodeUMD3(index int, program, preview bool, text string) []byte {
	buf := make([]byte, UMD3MessageLen)
	buf[0] = byte(index - 1)
	buf[1] = byte(EncodeControl(program, preview))
	padded := fmt.Sprintf("%-16s", text)
	copy(buf[2:], padded[:umd3TextLen])
	return buf
}
