package domain

import (
	"context"
	"time"
)

// EventKind identifica o que aconteceu com uma barreira.
type EventKind string

const (
	EventAllowed EventKind = "allowed"
	EventDenied  EventKind = "denied"
	EventSuccess EventKind = "success"
	EventFail    EventKind = "fail"
)

// StatsEvent representa uma decisão de Check ou um resultado reportado.
//
// Observação: cuidado com cardinalidade de Key em bases como Redis.
type StatsEvent struct {
	Key  string
	Kind EventKind
	// Code só é preenchido em EventDenied.
	Code DenyCode
	At   time.Time
}

// StatsStore é a estratégia de persistência para estatísticas das barreiras.
//
// Quem registra deve tratar erro como best-effort (não derrubar o ciclo).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
