// Package log provides pagelog's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Records are routed through Go's log/slog
// via a bridge handler that feeds our formatter/outputs pipeline, so storage
// components log with the same shape whether they run inside the CLI or are
// embedded in another process.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("pagelog"), log.Str("dir", "/var/lib/pagelog"))
//	l.Info("block created", log.Uint64("address", 4096))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or JSON
// format, console/file/null outputs, redacted keys, sampling).
//
// # Interop
//
// Pebble and other libraries log through the standard library; RedirectStdLog
// routes that output into a Logger.
package log
