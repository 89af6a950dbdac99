package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// journalScanBuffer bounds a single journal line. Event payloads are
// metadata, not prose, so 1 MiB is generous.
const journalScanBuffer = 1 << 20

// lockFor returns the per-project event-log mutex, creating it on first use.
func (s *Store) lockFor(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.logMu[projectID]
	if !ok {
		m = &sync.Mutex{}
		s.logMu[projectID] = m
	}
	return m
}

// AppendEvent durably appends one serialized event line to the project's
// journal. The line is fsync'd before return; appends for the same project
// are serialised, different projects are independent.
func (s *Store) AppendEvent(projectID string, line []byte) error {
	mu := s.lockFor(projectID)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(s.eventLogPath(projectID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event journal: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync event journal: %w", err)
	}
	return nil
}

// LastEventSeq returns the sequence number of the newest journal line, or 0
// when the journal is empty or absent.
func (s *Store) LastEventSeq(projectID string) (int64, error) {
	f, err := os.Open(s.eventLogPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open event journal: %w", err)
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), journalScanBuffer)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			last = append(last[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan event journal: %w", err)
	}
	if len(last) == 0 {
		return 0, nil
	}

	var tail struct {
		Seq int64 `json:"seq"`
	}
	if err := json.Unmarshal(last, &tail); err != nil {
		return 0, fmt.Errorf("failed to decode journal tail: %w", err)
	}
	return tail.Seq, nil
}

// ReadEventLines returns journal lines with seq greater than afterSeq, in
// order, up to limit. The boolean reports whether more lines remain beyond
// the returned batch (catch-up overflow).
func (s *Store) ReadEventLines(projectID string, afterSeq int64, limit int) ([]json.RawMessage, bool, error) {
	f, err := os.Open(s.eventLogPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open event journal: %w", err)
	}
	defer f.Close()

	var out []json.RawMessage
	more := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), journalScanBuffer)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var head struct {
			Seq int64 `json:"seq"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			continue // skip unparsable lines rather than failing catch-up
		}
		if head.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) >= limit {
			more = true
			break
		}
		out = append(out, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to scan event journal: %w", err)
	}
	return out, more, nil
}
