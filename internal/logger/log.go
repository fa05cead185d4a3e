// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"payload-log/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// Installs the global zerolog logger. Call once, right after config.Load.
//
//  1. Format:
//     - LOG_PRETTY=true: coloured console output for local runs
//     - otherwise: one JSON object per line for the log pipeline
//
//  2. Every record carries "service" and "instance", so output from
//     several replicas can be told apart.
//
//  3. Sampling: with LOG_SAMPLE_N > 1 only 1 in N Debug/Info records is
//     kept. Warn and Error are never sampled.
//
// Usage:
//
//	logger.Init(cfg)
//	log.Info().Msg("server started")
func Init(cfg config.Config) {

	// -------------------------------------------------------------------
	// Output: human vs machine
	// -------------------------------------------------------------------
	// Local runs get aligned, coloured text:
	//   10:00:05 INF payload log server listening addr=:8080
	// Deployed runs write raw JSON to stdout for CloudWatch/Datadog:
	//   {"level":"info","service":"payload-log","message":"..."}
	var w io.Writer = os.Stdout
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05", // the date adds nothing while developing
		}
	}
	InitWithWriter(cfg, w)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(cfg config.Config, w io.Writer) {

	// -------------------------------------------------------------------
	// 1) Minimum level
	// -------------------------------------------------------------------
	// Records below it are never built. Unknown or empty LOG_LEVEL is info.
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	// -------------------------------------------------------------------
	// 2) Base logger with common fields
	// -------------------------------------------------------------------
	// service/instance tell replicas apart when logs are aggregated.
	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName). // e.g. payload-log
		Str("instance", cfg.InstanceID). // hostname / task id
		Logger()

	// -------------------------------------------------------------------
	// 3) Sampling
	// -------------------------------------------------------------------
	// With N=100 one Debug/Info record in 100 is kept (access logs on a
	// busy tail). Warn/Error samplers stay nil: failures are always logged.
	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	// -------------------------------------------------------------------
	// 4) Install globally
	// -------------------------------------------------------------------
	zlog.Logger = logger

	// stdlib log.Printf (net/http, AWS SDK) goes through zerolog too
	stdlog.SetFlags(0)            // zerolog stamps the time itself
	stdlog.SetOutput(zlog.Logger) // stdlib lines become info records
}
