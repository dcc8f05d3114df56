package incidentlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/models"
)

// Service appends one JSON object per line to the incident log. Records
// are immutable once written; the file is the audit trail for every gate
// decision, admitted or suppressed.
type Service struct {
	path   string
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

func NewService(path string) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("incident log path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open incident log: %w", err)
	}

	log.Info().Str("path", path).Msg("Incident log opened")

	return &Service{
		path:   path,
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Append writes one incident record, assigning an id when absent.
// Returns the write error for diagnostics; callers treat failures as
// non-fatal.
func (s *Service) Append(record models.IncidentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Path returns the log file location
func (s *Service) Path() string { return s.path }

// Shutdown flushes and closes the log file
func (s *Service) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
