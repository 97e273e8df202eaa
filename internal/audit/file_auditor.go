package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
)

// fileEntry is the NDJSON-serializable form of one execution attempt.
type fileEntry struct {
	Timestamp string  `json:"ts"`
	RequestID string  `json:"request_id"`
	Tool      string  `json:"tool,omitempty"`
	Attempt   int     `json:"attempt"`
	Outcome   string  `json:"outcome"`
	Kind      string  `json:"kind,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Rows      int     `json:"rows"`
	SQL       string  `json:"sql"`
	Error     *string `json:"error"`
}

// FileAuditor writes one NDJSON line per attempt to an append-only file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// ObserveAttempt returns write errors; the guard logs and drops them.
func (a *FileAuditor) ObserveAttempt(_ context.Context, at domain.Attempt) error {
	ts := at.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	fe := fileEntry{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		RequestID: at.RequestID,
		Tool:      at.Tool,
		Attempt:   at.Number,
		Outcome:   string(at.Outcome),
		Kind:      string(at.Kind),
		ElapsedMS: at.Elapsed.Milliseconds(),
		Rows:      at.RowCount,
		SQL:       at.SQL,
	}
	if at.Message != "" {
		fe.Error = &at.Message
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enc.Encode(fe); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
