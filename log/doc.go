// Package log wraps [log/slog] with the handful of settings the cairn
// tools expose on the command line: level, output format, timestamp
// layout, caller information and colorized console output.
//
// A [Logger] is a value. Its zero value discards everything, so
// components such as the template engine can hold one unconditionally:
//
//	var l log.Logger
//	l.Debug("ignored")
//
// Loggers are built with [Make] and refined with [Logger.Wrap] and
// [Logger.With]:
//
//	l := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("kitchen"))
//	l = l.With(slog.String("template", "index.html"))
//	l.Info("rendered", slog.Int("bytes", n))
//
// # Levels
//
// [LevelTrace] sits below [LevelDebug] and is used for per-node compiler
// and cache diagnostics that are too chatty for debug output.
//
// # Default logger
//
// The package-level functions ([Info], [DebugContext], ...) write to a
// process-wide logger that [Config] reconfigures. Functions without a
// context argument use [DefaultContextProvider].
package log
