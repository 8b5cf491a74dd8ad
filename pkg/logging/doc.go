// Package logging configures the structured loggers used across restsync.
//
// It wraps log/slog. Components accept a *slog.Logger through an option and
// fall back to Nop when none is given:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	client := httpclient.New(baseURL, httpclient.WithLogger(logging.Component(logger, "http")))
package logging
