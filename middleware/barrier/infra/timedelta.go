package infra

import (
	"fmt"
	"time"

	"barrier-gateway/middleware/barrier/domain"

	log "github.com/sirupsen/logrus"
)

var _ domain.Barrier = (*TimeDeltaBarrier)(nil)

// TimeDeltaBarrier exige um tempo mínimo desde o último sucesso.
// Falhas não afetam esta variante.
type TimeDeltaBarrier struct {
	delta       time.Duration
	lastSuccess time.Time
	clock       domain.Clock
	log         *log.Entry
}

func NewTimeDeltaBarrier(delta time.Duration, opts ...Option) (*TimeDeltaBarrier, error) {
	if delta < 0 {
		return nil, fmt.Errorf("time delta barrier: delta must be >= 0, got %s", delta)
	}
	o := newOptions(opts)
	return &TimeDeltaBarrier{
		delta:       delta,
		lastSuccess: o.initialSuccess(),
		clock:       o.clock,
		log:         o.logger(),
	}, nil
}

func (b *TimeDeltaBarrier) Delta() time.Duration { return b.delta }

func (b *TimeDeltaBarrier) Check(now time.Time) error {
	now = domain.Normalize(now, b.clock)
	if b.lastSuccess.IsZero() {
		return nil
	}

	diff := now.Sub(b.lastSuccess)
	if diff < b.delta {
		b.log.WithField("code", domain.CodeNoMaxAge).Debugf("execution denied: %s since last success", diff)
		return &domain.DenyError{
			Code:    domain.CodeNoMaxAge,
			Reason:  fmt.Sprintf("no max_age reached (%s < %s)", diff, b.delta),
			RetryAt: b.lastSuccess.Add(b.delta),
		}
	}
	return nil
}

func (b *TimeDeltaBarrier) Success(now time.Time) {
	b.lastSuccess = domain.Normalize(now, b.clock)
}

func (b *TimeDeltaBarrier) Fail(time.Time) {}

func (b *TimeDeltaBarrier) Dump() domain.Snapshot {
	return domain.Snapshot{
		domain.AttrMaxAge:      b.delta,
		domain.AttrLastSuccess: domain.Instant(b.lastSuccess),
	}
}
