package testlog

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start routes the global logger through the test's log buffer so log
// output is attributed to the test that produced it.
func Start(t *testing.T) {
	t.Helper()
	log.Logger = zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
}
