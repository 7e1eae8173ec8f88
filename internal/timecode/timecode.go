package timecode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// rateEpsilon is the tolerance for frame-rate identity checks. Frame rates
// arrive as floats from config and device metadata; never compare exactly.
const rateEpsilon = 0.01

var (
	ErrInvalidTimecode = errors.New("timecode: invalid timecode string")
	ErrNegativeFrames  = errors.New("timecode: negative frame count")
)

var timecodePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})([:;])(\d{2})$`)

func rateIs(rate, want float64) bool {
	return math.Abs(rate-want) < rateEpsilon
}

// IsNTSC reports whether rate is one of the fractional NTSC rates.
func IsNTSC(rate float64) bool {
	return rateIs(rate, 23.976) || rateIs(rate, 29.97) || rateIs(rate, 59.94)
}

// Timebase returns the integer frame base used by the interchange format.
func Timebase(rate float64) int {
	switch {
	case rateIs(rate, 23.976):
		return 24
	case rateIs(rate, 29.97):
		return 30
	case rateIs(rate, 59.94):
		return 60
	default:
		return int(math.Round(rate))
	}
}

// SupportsDropFrame reports whether rate has a drop-frame counting convention.
func SupportsDropFrame(rate float64) bool {
	return rateIs(rate, 29.97) || rateIs(rate, 59.94)
}

// dropCount returns how many frame numbers are skipped per drop minute.
func dropCount(rate float64) int {
	switch {
	case rateIs(rate, 29.97):
		return 2
	case rateIs(rate, 59.94):
		return 4
	default:
		return 0
	}
}

// Components is a parsed HH:MM:SS:FF timecode.
type Components struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
}

// ToFrames converts timecode components to an absolute frame count.
// With dropFrame set, the skipped frame numbers at the start of each
// non-tenth minute are subtracted out.
func ToFrames(tc Components, rate float64, dropFrame bool) int {
	base := Timebase(rate)
	frames := ((tc.Hours*3600)+(tc.Minutes*60)+tc.Seconds)*base + tc.Frames
	if dropFrame && SupportsDropFrame(rate) {
		drop := dropCount(rate)
		totalMinutes := tc.Hours*60 + tc.Minutes
		frames -= drop * (totalMinutes - totalMinutes/10)
	}
	return frames
}

// FromFrames converts an absolute frame count back to timecode components.
// Exact inverse of ToFrames for every representable timecode.
func FromFrames(frames int, rate float64, dropFrame bool) Components {
	base := Timebase(rate)
	d := frames
	if dropFrame && SupportsDropFrame(rate) {
		drop := dropCount(rate)
		framesPerMinute := base*60 - drop
		framesPerTenMinutes := base*600 - drop*9
		tenMinuteBlocks := d / framesPerTenMinutes
		rem := d % framesPerTenMinutes
		d += drop * 9 * tenMinuteBlocks
		if rem > drop {
			d += drop * ((rem - drop) / framesPerMinute)
		}
	}
	return Components{
		Hours:   d / (base * 3600),
		Minutes: (d / (base * 60)) % 60,
		Seconds: (d / base) % 60,
		Frames:  d % base,
	}
}

// IsValid reports whether s is a well-formed timecode string.
func IsValid(s string) bool {
	_, _, err := parse(s)
	return err == nil
}

func parse(s string) (Components, bool, error) {
	m := timecodePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Components{}, false, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	ff, _ := strconv.Atoi(m[5])
	if mm > 59 || ss > 59 {
		return Components{}, false, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	return Components{Hours: hh, Minutes: mm, Seconds: ss, Frames: ff}, m[4] == ";", nil
}

// ParseString parses HH:MM:SS:FF (non-drop) or HH:MM:SS;FF (drop) into an
// absolute frame count. The semicolon separator signals drop-frame counting
// regardless of the dropFrame argument the caller would otherwise use.
func ParseString(s string, rate float64) (int, error) {
	tc, drop, err := parse(s)
	if err != nil {
		return 0, err
	}
	if tc.Frames >= Timebase(rate) {
		return 0, fmt.Errorf("%w: frame field %02d out of range for rate %.3f", ErrInvalidTimecode, tc.Frames, rate)
	}
	return ToFrames(tc, rate, drop && SupportsDropFrame(rate)), nil
}

// FormatString renders an absolute frame count as HH:MM:SS:FF, using the
// semicolon frame separator when dropFrame counting is in effect.
func FormatString(frames int, rate float64, dropFrame bool) string {
	if frames < 0 {
		frames = 0
	}
	drop := dropFrame && SupportsDropFrame(rate)
	tc := FromFrames(frames, rate, drop)
	sep := ":"
	if drop {
		sep = ";"
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", tc.Hours, tc.Minutes, tc.Seconds, sep, tc.Frames)
}

// DateToFrames maps a wall-clock instant to a frame count relative to the
// session start: floor(elapsed seconds * rate). Lossy and monotonic; this is
// the only bridge between event timestamps and timeline positions.
func DateToFrames(instant, sessionStart time.Time, rate float64) int {
	elapsed := instant.Sub(sessionStart).Seconds()
	if elapsed < 0 {
		return 0
	}
	return int(math.Floor(elapsed * rate))
}
