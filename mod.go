// Package mela defines the global tools of the execution core. Sub-packages
// implement the state container, the action pipeline and the sequencer that
// seals actions into blocks.
package mela

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.InfoLevel

// PromCollectors exposes the prometheus collectors of the packages so that a
// node can register them to its own registry.
var PromCollectors []prometheus.Collector

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it writes
// human-readable logs to the standard output.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(parseLevel(os.Getenv(EnvLogLevel)))

func parseLevel(lvl string) zerolog.Level {
	switch lvl {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "":
		return defaultLevel
	default:
		return zerolog.TraceLevel
	}
}
