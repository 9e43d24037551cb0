package correlate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcher_BuildsTable(t *testing.T) {
	source := SourceFunc(func(_ context.Context, sessionID string) ([]Message, error) {
		if sessionID != "s1" {
			t.Errorf("unexpected session %q", sessionID)
		}
		return []Message{{Parts: []Part{toolPart("id1", "read")}}}, nil
	})
	table, err := NewFetcher(source).Table(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Table() error: %v", err)
	}
	if got, ok := table.Resolve("read", 0); !ok || got != "id1" {
		t.Errorf("Resolve(read, 0) = %q, %v", got, ok)
	}
}

func TestFetcher_FetchError(t *testing.T) {
	wantErr := errors.New("storage offline")
	source := SourceFunc(func(context.Context, string) ([]Message, error) {
		return nil, wantErr
	})
	_, err := NewFetcher(source).Table(context.Background(), "s1")
	if !errors.Is(err, wantErr) {
		t.Errorf("Table() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestFetcher_NilSource(t *testing.T) {
	if _, err := NewFetcher(nil).Table(context.Background(), "s1"); err == nil {
		t.Error("Table() with nil source should fail")
	}
	var f *Fetcher
	if _, err := f.Table(context.Background(), "s1"); err == nil {
		t.Error("Table() on nil fetcher should fail")
	}
}

// Concurrent fetches for the same session collapse into one transcript read.
func TestFetcher_Singleflight(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	source := SourceFunc(func(context.Context, string) ([]Message, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return []Message{{Parts: []Part{toolPart("id1", "read")}}}, nil
	})
	f := NewFetcher(source)

	var wg sync.WaitGroup
	fetch := func() {
		defer wg.Done()
		if _, err := f.Table(context.Background(), "s1"); err != nil {
			t.Errorf("Table() error: %v", err)
		}
	}

	wg.Add(1)
	go fetch()
	<-started

	// These arrive while the first fetch is in flight and must join it.
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go fetch()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("transcript fetched %d times, want 1", got)
	}
}
