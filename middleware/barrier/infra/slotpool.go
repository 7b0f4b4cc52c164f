package infra

import (
	"context"

	"barrier-gateway/middleware/barrier/domain"
)

type slotPool struct {
	sem chan struct{}
}

// NewSlotPool cria um semáforo baseado em channel com capacidade `max`.
// Com max <= 0 devolve nil: sem limite.
func NewSlotPool(max int) domain.SlotPool {
	if max <= 0 {
		return nil
	}
	return &slotPool{sem: make(chan struct{}, max)}
}

func (p *slotPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
