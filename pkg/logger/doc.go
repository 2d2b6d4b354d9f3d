// Package logger provides the structured logging interface used by igleads.
//
// It wraps zerolog behind a small Logger interface so that components take a
// Logger in their constructor and tests can pass NewTestLogger or
// NewNopLogger instead.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("handle", "shopa").Info("profile fetched")
//	log.WithError(err).WarnWithFields("fetch failed", map[string]interface{}{"depth": 1})
package logger
