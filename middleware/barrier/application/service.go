package application

import (
	"context"
	"time"

	"barrier-gateway/middleware/barrier/domain"

	log "github.com/sirupsen/logrus"
)

// Source entrega a barreira de uma chave. infra.Registry implementa.
type Source interface {
	Get(key string) (domain.Barrier, error)
}

// Decision é o resultado de consultar uma barreira.
type Decision struct {
	Allowed bool
	Code    domain.DenyCode
	Reason  string
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	RetryAfter time.Duration
}

// Service concentra a regra de aplicação das barreiras.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Source     Source
	Stats      domain.StatsStore
	Clock      domain.Clock
	RetryAfter time.Duration
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s Service) Decide(ctx context.Context, key string) Decision {
	if s.Source == nil {
		return Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	b, err := s.Source.Get(key)
	if err != nil || b == nil {
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("barrier lookup failed, allowing")
		}
		return Decision{Allowed: true}
	}

	now := s.now()
	errCheck := b.Check(now)
	if errCheck == nil {
		s.record(ctx, domain.StatsEvent{Key: key, Kind: domain.EventAllowed, At: now})
		return Decision{Allowed: true}
	}

	deny, ok := domain.AsDenied(errCheck)
	if !ok {
		log.WithError(errCheck).WithField("key", key).Warn("barrier check failed, allowing")
		return Decision{Allowed: true}
	}
	s.record(ctx, domain.StatsEvent{Key: key, Kind: domain.EventDenied, Code: deny.Code, At: now})

	retryAfter := s.RetryAfter
	if !deny.RetryAt.IsZero() {
		if d := deny.RetryAt.Sub(now); d > 0 {
			retryAfter = d
		}
	}
	return Decision{Allowed: false, Code: deny.Code, Reason: deny.Reason, RetryAfter: retryAfter}
}

// Report registra o resultado da tentativa liberada por Decide.
func (s Service) Report(ctx context.Context, key string, ok bool) {
	if s.Source == nil {
		return
	}
	b, err := s.Source.Get(key)
	if err != nil || b == nil {
		return
	}

	now := s.now()
	if ok {
		b.Success(now)
		s.record(ctx, domain.StatsEvent{Key: key, Kind: domain.EventSuccess, At: now})
		return
	}
	b.Fail(now)
	s.record(ctx, domain.StatsEvent{Key: key, Kind: domain.EventFail, At: now})
}

func (s Service) record(ctx context.Context, ev domain.StatsEvent) {
	if s.Stats == nil {
		return
	}
	if err := s.Stats.Record(ctx, ev); err != nil {
		log.WithError(err).WithField("key", ev.Key).Debug("barrier stats record failed")
	}
}
