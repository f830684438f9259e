// Sweep - Multi-region AWS resource inventory
// Enumerate. Probe. Assemble.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	Execute()
}

// setupLogging configures the global console logger. --debug wins over the
// configured level.
func setupLogging(level string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
	}
}
