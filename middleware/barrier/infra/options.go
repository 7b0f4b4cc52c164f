package infra

import (
	"time"

	"barrier-gateway/middleware/barrier/domain"

	log "github.com/sirupsen/logrus"
)

type options struct {
	clock       domain.Clock
	location    *time.Location
	name        string
	lastSuccess time.Time
}

// Option configura uma barreira na construção.
type Option func(*options)

// WithClock troca o relógio usado quando `now` é zero.
func WithClock(c domain.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLocation define a zona em que o minuto da hora é avaliado
// (TimeWindowBarrier). Padrão: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithName identifica a barreira nos logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLastSuccess semeia o último sucesso conhecido.
func WithLastSuccess(t time.Time) Option {
	return func(o *options) { o.lastSuccess = t }
}

func newOptions(opts []Option) options {
	o := options{
		clock:    domain.SystemClock{},
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) logger() *log.Entry {
	return log.WithField("barrier", o.name)
}

func (o options) initialSuccess() time.Time {
	if o.lastSuccess.IsZero() {
		return time.Time{}
	}
	return domain.Normalize(o.lastSuccess, o.clock)
}
