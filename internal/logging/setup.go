// Package logging configures the shared logrus logger and captures recent
// entries in an in-memory ring buffer for the debug API.
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetupBaseLogger applies the standard formatter and log level. The level
// comes from TOOLGATE_LOG_LEVEL when set (one of logrus's level names),
// defaulting to info.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)

	level := log.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("TOOLGATE_LOG_LEVEL")); raw != "" {
		if parsed, err := log.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}
