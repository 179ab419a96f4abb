package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/sheets"
)

// Export is one stored table.
type Export struct {
	Title string
	Cells [][]string
}

// Store keeps exports in process; used in development and tests.
type Store struct {
	mu      sync.Mutex
	exports []Export
}

var _ sheets.ViewExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Export stores the table and returns a synthetic reference.
func (s *Store) Export(ctx context.Context, req sheets.ExportRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e := Export{Title: sheets.SheetTitle(req), Cells: sheets.Table(req)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports = append(s.exports, e)
	return fmt.Sprintf("mem:%d", len(s.exports)), nil
}

// Exports returns a copy of everything exported so far.
func (s *Store) Exports() []Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Export(nil), s.exports...)
}
