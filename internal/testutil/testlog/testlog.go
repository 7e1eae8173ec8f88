package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a zerolog.Logger that writes through t.Log, so diagnostic
// output lands with the failing test.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
}
