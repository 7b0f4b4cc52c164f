package infra

import (
	"fmt"
	"time"

	"barrier-gateway/middleware/barrier/domain"

	log "github.com/sirupsen/logrus"
)

var (
	_ domain.Barrier = (*TimeWindowBarrier)(nil)
	_ domain.Forcer  = (*TimeWindowBarrier)(nil)
)

// TimeWindowBarrier combina janela de minutos permitidos, rajada limitada de
// retentativas, cooldown após esgotar as retentativas e um force de uso único.
type TimeWindowBarrier struct {
	maxAge   time.Duration
	window   Window
	budget   RetryBudget
	location *time.Location
	clock    domain.Clock
	log      *log.Entry

	forceNext   bool
	failures    int
	lastSuccess time.Time
	cooldown    time.Time
}

// NewTimeWindowBarrier cria a barreira. O cooldown dura maxAge/2.
func NewTimeWindowBarrier(window Window, maxRetries int, maxAge time.Duration, opts ...Option) (*TimeWindowBarrier, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("time window barrier: %w", err)
	}
	budget, err := NewRetryBudget(maxRetries)
	if err != nil {
		return nil, fmt.Errorf("time window barrier: %w", err)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("time window barrier: max_age must be > 0, got %s", maxAge)
	}

	o := newOptions(opts)
	return &TimeWindowBarrier{
		maxAge:      maxAge,
		window:      window,
		budget:      budget,
		location:    o.location,
		clock:       o.clock,
		log:         o.logger(),
		lastSuccess: o.initialSuccess(),
	}, nil
}

// Check avalia, nesta ordem: reset do cooldown vencido, force, cooldown ativo,
// retentativa em andamento, janela fechada e sucesso recente demais.
func (b *TimeWindowBarrier) Check(now time.Time) error {
	now = domain.Normalize(now, b.clock)

	if b.budget.Exhausted(b.failures) && !now.Before(b.cooldown) {
		b.log.Debug("cooldown barrier reached, resetting failures")
		b.failures = 0
	}

	if b.forceNext {
		b.log.Debug("execution allowed: forced")
		return nil
	}

	if now.Before(b.cooldown) {
		b.log.WithField("code", domain.CodeCooldown).
			Debugf("execution denied: cooldown barrier is active (%s)", b.cooldown.In(b.location))
		return &domain.DenyError{
			Code:    domain.CodeCooldown,
			Reason:  "barrier is in cooldown stage",
			RetryAt: b.cooldown,
		}
	}

	if b.budget.Retrying(b.failures) {
		b.log.Debugf("execution allowed: retrying (%d/%d)", b.failures, b.budget.MaxRetries())
		return nil
	}

	if !b.window.Contains(now.In(b.location)) {
		b.log.WithField("code", domain.CodeWindowClosed).Debug("execution denied: update window is closed")
		return &domain.DenyError{
			Code:    domain.CodeWindowClosed,
			Reason:  fmt.Sprintf("update window %s is closed", b.window),
			RetryAt: b.window.NextOpen(now, b.location).In(domain.DefaultZone),
		}
	}

	if !b.lastSuccess.IsZero() {
		age, minAge := now.Sub(b.lastSuccess), b.window.Width()
		if age <= minAge {
			b.log.WithField("code", domain.CodeNoDelta).
				Debugf("execution denied: last success is too recent (%s, min: %s)", age, minAge)
			return &domain.DenyError{
				Code:    domain.CodeNoDelta,
				Reason:  fmt.Sprintf("no delta (%s <= %s)", age, minAge),
				RetryAt: b.lastSuccess.Add(minAge + time.Nanosecond),
			}
		}
	}

	b.log.Debug("execution allowed: no blockers")
	return nil
}

// ForceNext libera as próximas checagens até um Success ou até um Fail que
// esgote as retentativas.
func (b *TimeWindowBarrier) ForceNext() {
	b.forceNext = true
	b.log.Debug("next execution forced")
}

func (b *TimeWindowBarrier) Success(now time.Time) {
	now = domain.Normalize(now, b.clock)

	b.forceNext = false
	b.failures = 0
	b.lastSuccess = now

	b.log.Debug("success registered")
}

func (b *TimeWindowBarrier) Fail(now time.Time) {
	now = domain.Normalize(now, b.clock)

	// failures nunca passa de max_retries; uma falha extra só reinicia o cooldown
	if !b.budget.Exhausted(b.failures) {
		b.failures++
	}
	b.log.Debugf("fail registered (%d/%d)", b.failures, b.budget.MaxRetries())

	if b.budget.Exhausted(b.failures) {
		b.forceNext = false
		b.cooldown = now.Add(b.maxAge / 2)
		b.log.Debugf("max failures reached, setup cooldown barrier until %s", b.cooldown.In(b.location))
	}
}

func (b *TimeWindowBarrier) Dump() domain.Snapshot {
	s := domain.Snapshot{
		domain.AttrMaxAge:               b.maxAge,
		domain.AttrAllowedWindowMinutes: [2]int{b.window.Low, b.window.High},
		domain.AttrCooldown:             domain.Instant(b.cooldown),
		domain.AttrForceNext:            b.forceNext,
		domain.AttrLastSuccess:          domain.Instant(b.lastSuccess),
		domain.AttrFailures:             b.failures,
	}
	for k, v := range b.budget.Attributes() {
		s[k] = v
	}
	return s
}
