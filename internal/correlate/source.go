package correlate

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Source provides a session's authoritative transcript. The host wires its
// own session storage in behind this interface; the correlator never reads
// transcripts any other way.
type Source interface {
	Transcript(ctx context.Context, sessionID string) ([]Message, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, sessionID string) ([]Message, error)

// Transcript implements Source.
func (f SourceFunc) Transcript(ctx context.Context, sessionID string) ([]Message, error) {
	return f(ctx, sessionID)
}

// Fetcher builds correlation tables from a Source, collapsing concurrent
// fetches for the same session into one underlying transcript read.
type Fetcher struct {
	source Source
	group  singleflight.Group
}

// NewFetcher returns a Fetcher over source. source may be nil, in which case
// every Table call fails and callers degrade to synthetic identifiers.
func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// Table fetches the session's transcript and builds a fresh table from it.
// The table is always rebuilt from scratch, never patched incrementally.
func (f *Fetcher) Table(ctx context.Context, sessionID string) (*Table, error) {
	if f == nil || f.source == nil {
		return nil, fmt.Errorf("correlate: no transcript source configured")
	}
	v, err, _ := f.group.Do(sessionID, func() (any, error) {
		transcript, errFetch := f.source.Transcript(ctx, sessionID)
		if errFetch != nil {
			return nil, fmt.Errorf("correlate: fetch transcript for session %s: %w", sessionID, errFetch)
		}
		table := Build(transcript)
		log.WithFields(log.Fields{
			"session": sessionID,
			"calls":   table.Len(),
		}).Debug("rebuilt tool-call correlation table")
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}
