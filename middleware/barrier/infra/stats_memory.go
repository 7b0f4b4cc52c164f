package infra

import (
	"context"
	"sync"

	"barrier-gateway/middleware/barrier/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Success int64 `json:"success"`
	Fail    int64 `json:"fail"`
}

func (c *Counters) add(kind domain.EventKind) {
	switch kind {
	case domain.EventAllowed:
		c.Allowed++
	case domain.EventDenied:
		c.Denied++
	case domain.EventSuccess:
		c.Success++
	case domain.EventFail:
		c.Fail++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu     sync.Mutex
	total  Counters
	byCode map[domain.DenyCode]int64
	byKey  map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byCode: make(map[domain.DenyCode]int64),
		byKey:  make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Kind)
	if ev.Kind == domain.EventDenied {
		s.byCode[ev.Code]++
	}
	if s.trackKeys {
		k := s.byKey[ev.Key]
		k.add(ev.Kind)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByCode() map[domain.DenyCode]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.DenyCode]int64, len(s.byCode))
	for k, v := range s.byCode {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
