package memory

import (
	"context"
	"fmt"
	"sync"

	ports "chitieu/internal/sheets"
)

// Sink keeps exported rows in memory. It stands in for the Google sheet in
// development and tests.
type Sink struct {
	mu    sync.Mutex
	rows  map[int64]ports.ExportRow
	order []int64
}

var _ ports.ExportSink = (*Sink)(nil)

func New() *Sink {
	return &Sink{rows: make(map[int64]ports.ExportRow)}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Sink) Upsert(_ context.Context, row ports.ExportRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.EntryID]; !ok {
		s.order = append(s.order, row.EntryID)
	}
	s.rows[row.EntryID] = row
	return fmt.Sprintf("mem:%d", row.EntryID), nil
}

// Delete drops the row. Missing rows are not an error.
func (s *Sink) Delete(_ context.Context, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[entryID]; !ok {
		return nil
	}
	delete(s.rows, entryID)
	for i, id := range s.order {
		if id == entryID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns the exported rows in first-export order.
func (s *Sink) Rows() []ports.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.ExportRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}
