// Package log provides logcache's structured logging facade.
//
// # Overview
//
// Components log through the small Logger interface using typed Field values.
// Records are routed through log/slog via a bridge handler into a Formatter
// (text or JSON) and one or more Outputs (console, file, null).
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("session"), log.Str("service", "svc1"))
//	l.Info("attached", log.Int("records", 0))
//
// # Configuration
//
// ApplyConfig builds a Logger from a declarative Config. Keys listed in
// Config.Redact are replaced with "[REDACTED]" before formatting.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble) through a
// Logger; ToStdLogger returns a *log.Logger writing at a fixed level.
package log
