// Package logging wraps charmbracelet/log with the settings used across the server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Default is the process-wide logger. Components derive prefixed loggers from it.
var Default = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "2006-01-02 15:04:05",
})

// Setup applies level and format ("text", "json" or "logfmt"). Unknown levels fall back to info.
func Setup(level, format string) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	Default.SetLevel(lvl)
	Default.SetReportCaller(lvl == log.DebugLevel)

	switch strings.ToLower(format) {
	case "json":
		Default.SetFormatter(log.JSONFormatter)
	case "logfmt":
		Default.SetFormatter(log.LogfmtFormatter)
	default:
		Default.SetFormatter(log.TextFormatter)
	}
}

// SetOutput redirects the default logger, mostly for tests.
func SetOutput(w io.Writer) {
	Default.SetOutput(w)
}

// For returns a logger tagged with a component prefix.
func For(component string) *log.Logger {
	return Default.WithPrefix(component)
}
