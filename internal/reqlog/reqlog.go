// Package reqlog writes one JSONL record per intercepted request to a
// size-rotated file. It exists for debugging interception behavior and is
// disabled unless request logging is turned on in the configuration.
package reqlog

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the request debug log.
type Config struct {
	// Enabled turns request logging on.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Path is the log file location.
	Path string `yaml:"path" json:"path"`
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int `yaml:"max-size-mb" json:"max-size-mb"`
	// MaxBackups is how many rotated files are kept.
	MaxBackups int `yaml:"max-backups" json:"max-backups"`
	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `yaml:"max-age-days" json:"max-age-days"`
}

// DefaultConfig returns sensible defaults with logging off.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Path:       "toolgate-requests.log",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// Entry is one request record.
type Entry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	SessionID   string    `json:"sessionId,omitempty"`
	URL         string    `json:"url"`
	Format      string    `json:"format"`
	ToolOutputs int       `json:"toolOutputs"`
	Modified    bool      `json:"modified"`
	BodyBytes   int       `json:"bodyBytes"`
}

// Recorder appends entries to the rotated log file. A nil Recorder is valid
// and records nothing.
type Recorder struct {
	mu sync.Mutex
	w  *lumberjack.Logger
}

// NewRecorder returns a Recorder for cfg, or nil when logging is disabled.
func NewRecorder(cfg Config) *Recorder {
	if !cfg.Enabled {
		return nil
	}
	return &Recorder{
		w: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
	}
}

// Record writes one entry. Failures are logged at debug level and otherwise
// swallowed; request logging must never affect the request path.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).Debug("reqlog: marshal entry")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err = r.w.Write(append(line, '\n')); err != nil {
		log.WithError(err).Debug("reqlog: write entry")
	}
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}
