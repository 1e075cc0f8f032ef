// Package logging provides structured logging configuration for listingd.
//
// This package wraps log/slog so every component logs the same way.
// Components accept a *slog.Logger and never build their own handlers.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("server started", "port", 3001)
//
// Request handlers attach a per-request logger to the context with
// IntoContext and read it back with FromContext.
package logging
