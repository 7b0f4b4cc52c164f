package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barrier-gateway/middleware/barrier/domain"
)

// ErrNoSlot indica que nenhuma vaga de busca foi obtida a tempo.
var ErrNoSlot = errors.New("no fetch slot available")

// FetchSlots limita quantas buscas liberadas rodam ao mesmo tempo.
//
// Pool nil significa sem limite. Com AcquireTimeout <= 0 espera até o ctx
// cancelar; com AcquireTimeout > 0 desiste depois desse tempo.
type FetchSlots struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

func (s FetchSlots) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNoSlot, acqCtx.Err())
	}
	return release, nil
}
