package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vorn/vorn/internal/models"
)

// InMemoryStore keeps files in process for local and test use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]FileRecord
	order   []string
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]FileRecord),
		now:     time.Now,
	}
}

func (s *InMemoryStore) SaveFile(_ context.Context, res models.FileResult) (string, error) {
	// Deep copy so later edits by the caller do not reach stored state.
	stored, err := clone(res)
	if err != nil {
		return "", err
	}

	rec := FileRecord{
		FileSummary: FileSummary{
			ID:              uuid.NewString(),
			Filename:        stored.Filename,
			CreatedAt:       s.now().UTC(),
			TotalRows:       stored.TotalRows,
			ComplianceScore: stored.ComplianceScore,
		},
		RulesSummary: stored.RulesSummary,
		Result:       stored,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec.ID, nil
}

func (s *InMemoryStore) GetFile(_ context.Context, id string) (FileRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return FileRecord{}, ErrNotFound
	}
	res, err := clone(rec.Result)
	if err != nil {
		return FileRecord{}, err
	}
	rec.Result = res
	rec.RulesSummary = res.RulesSummary
	return rec, nil
}

func (s *InMemoryStore) ListFiles(_ context.Context, limit int) ([]FileSummary, error) {
	limit = ClampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]FileSummary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]].FileSummary)
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func clone(res models.FileResult) (models.FileResult, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return models.FileResult{}, fmt.Errorf("encode file result: %w", err)
	}
	var out models.FileResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.FileResult{}, fmt.Errorf("decode file result: %w", err)
	}
	return out, nil
}
