package infra

import (
	"time"

	"barrier-gateway/middleware/barrier/domain"
)

var _ domain.Barrier = NoopBarrier{}

// NoopBarrier sempre libera. Serve para desligar o controle sem mudar o chamador.
type NoopBarrier struct{}

func (NoopBarrier) Check(time.Time) error { return nil }
func (NoopBarrier) Success(time.Time)     {}
func (NoopBarrier) Fail(time.Time)        {}
func (NoopBarrier) Dump() domain.Snapshot { return domain.Snapshot{} }
