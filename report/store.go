package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store writes one Markdown document per calendar day.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the document path for the day of date.
func (s *Store) Path(date time.Time) string {
	return filepath.Join(s.dir, date.Format("2006-01-02")+".md")
}

// Save writes content as the document for date, replacing any document
// already written that day.
func (s *Store) Save(date time.Time, content string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create summaries dir: %w", err)
	}

	path := s.Path(date)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}
