package rosstalk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tallyops/cutlog/internal/event"
)

var (
	ErrUnknownCommand = errors.New("rosstalk: unknown command")
	ErrBadArgument    = errors.New("rosstalk: bad command argument")
)

// ParseCommand maps one RossTalk line to an event payload. Commands the
// timeline has no use for (MECUT, SELECT, XPT, SALVO; the tally stream is
// authoritative for program state) parse to a nil payload with no error.
func ParseCommand(line string) (event.Payload, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, nil
	}
	verb := strings.ToUpper(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch verb {
	case "MEAUTO":
		me, err := parseME(arg)
		if err != nil {
			return nil, err
		}
		return event.Transition{ME: me}, nil

	case "KEYCUT", "KEYAUTO":
		me, keyer, off, err := parseKeyer(arg)
		if err != nil {
			return nil, err
		}
		if off {
			return event.KeyerOff{ME: me, Keyer: keyer}, nil
		}
		return event.KeyerOn{ME: me, Keyer: keyer}, nil

	case "FTB":
		me := 1
		if arg != "" {
			var err error
			if me, err = parseME(arg); err != nil {
				return nil, err
			}
		}
		return event.FadeToBlack{ME: me}, nil

	case "MECUT", "SELECT", "XPT", "SALVO", "GPI", "CC":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

// parseME parses "ME:n".
func parseME(arg string) (int, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "ME") {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, arg)
	}
	me, err := strconv.Atoi(parts[1])
	if err != nil || me < 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, arg)
	}
	return me, nil
}

// parseKeyer parses "ME:m:k" or "ME:m:k:OFF".
func parseKeyer(arg string) (me, keyer int, off bool, err error) {
	parts := strings.Split(arg, ":")
	if (len(parts) != 3 && len(parts) != 4) || !strings.EqualFold(parts[0], "ME") {
		return 0, 0, false, fmt.Errorf("%w: %q", ErrBadArgument, arg)
	}
	me, err = strconv.Atoi(parts[1])
	if err != nil || me < 1 {
		return 0, 0, false, fmt.Errorf("%w: %q", ErrBadArgument, arg)
	}
	keyer, err = strconv.Atoi(parts[2])
	if err != nil || keyer < 1 {
		return 0, 0, false, fmt.Errorf("%w: %q", ErrBadArgument, arg)
	}
	if len(parts) == 4 {
		if !strings.EqualFold(parts[3], "OFF") {
			return 0, 0, false, fmt.Errorf("%w: %q", ErrBadArgument, arg)
		}
		off = true
	}
	return me, keyer, off, nil
}
