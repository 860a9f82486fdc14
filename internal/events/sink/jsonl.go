// Package sink writes bus events to a JSONL file, one event per line.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/forgebuild/forge/internal/events"
)

// File is a subscriber that writes every event it receives to a JSONL
// file, one line per event. Open truncates any existing file at path.
type File struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// Open opens (creating or truncating) the JSONL file at path.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event sink file: %w", err)
	}
	return &File{path: path, f: f}, nil
}

// Run drains ch until it is closed, writing each event as one JSON line.
// Intended to run in its own goroutine for the lifetime of a subscription.
func (s *File) Run(ch <-chan events.Event) error {
	for e := range ch {
		if err := s.write(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *File) write(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	line = append(line, '\n')
	_, err = s.f.Write(line)
	return err
}

// Close flushes and closes the underlying file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
