package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/Cheese-chess-agent/internal/domain"
)

// memrepo keeps records in process; used when no database is configured.
type memrepo struct {
	mu      sync.RWMutex
	seq     int64
	byID    map[string]*memEntry
	ordered []*memEntry
}

type memEntry struct {
	seq int64
	rec domain.MatchRecord
}

func NewMemory() Repository {
	return &memrepo{byID: make(map[string]*memEntry)}
}

func (m *memrepo) SaveMatch(_ context.Context, rec *domain.MatchRecord) error {
	if rec == nil {
		return ErrDuplicateMatch
	}
	key := strings.TrimSpace(rec.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[key]; exists {
		return ErrDuplicateMatch
	}
	m.seq++
	e := &memEntry{seq: m.seq, rec: cloneRecord(rec)}
	m.byID[key] = e
	m.ordered = append(m.ordered, e)
	return nil
}

func (m *memrepo) GetMatch(_ context.Context, id string) (*domain.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	rec := cloneRecord(&e.rec)
	return &rec, nil
}

func (m *memrepo) RecentMatches(_ context.Context, limit int) ([]*domain.MatchRecord, error) {
	m.mu.RLock()
	items := append([]*memEntry(nil), m.ordered...)
	m.mu.RUnlock()

	// EndedAt desc, then insertion order desc
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.rec.EndedAt.Equal(b.rec.EndedAt) {
			return a.rec.EndedAt.After(b.rec.EndedAt)
		}
		return a.seq > b.seq
	})
	if limit <= 0 {
		limit = 10
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]*domain.MatchRecord, 0, len(items))
	for _, e := range items {
		rec := cloneRecord(&e.rec)
		out = append(out, &rec)
	}
	return out, nil
}

func (m *memrepo) Close() error { return nil }

func cloneRecord(r *domain.MatchRecord) domain.MatchRecord {
	c := *r
	c.MovesUCI = append([]string(nil), r.MovesUCI...)
	c.MovesSAN = append([]string(nil), r.MovesSAN...)
	c.Plies = append([]domain.Ply(nil), r.Plies...)
	return c
}
