package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDenied casa com qualquer *DenyError via errors.Is.
var ErrDenied = errors.New("barrier denied")

// DenyCode enumera os motivos de negação de cada variante.
type DenyCode int

const (
	CodeUnknown DenyCode = iota
	// TimeDeltaBarrier: tempo desde o último sucesso abaixo do delta.
	CodeNoMaxAge
	// TimeWindowBarrier: dentro de um período de cooldown.
	CodeCooldown
	// TimeWindowBarrier: minuto atual fora da janela permitida.
	CodeWindowClosed
	// TimeWindowBarrier: já houve sucesso dentro da largura da janela.
	CodeNoDelta
)

var codeNames = map[DenyCode]string{
	CodeUnknown:      "UNKNOWN",
	CodeNoMaxAge:     "NO_MAX_AGE",
	CodeCooldown:     "COOLDOWN",
	CodeWindowClosed: "WINDOW_CLOSED",
	CodeNoDelta:      "NO_DELTA",
}

func (c DenyCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("DenyCode(%d)", int(c))
}

// MarshalText permite usar o código em JSON e headers.
func (c DenyCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// DenyError é o sinal estruturado de negação produzido por Check.
//
// Não é uma falha: o chamador deve tratar como "pular este ciclo".
type DenyError struct {
	Code   DenyCode
	Reason string
	// RetryAt é o instante mais cedo em que o motivo deixa de valer.
	// Zero quando desconhecido.
	RetryAt time.Time
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("barrier denied (%s): %s", e.Code, e.Reason)
}

func (e *DenyError) Is(target error) bool {
	return target == ErrDenied
}

// AsDenied extrai o *DenyError de err, se houver.
func AsDenied(err error) (*DenyError, bool) {
	var deny *DenyError
	if errors.As(err, &deny) {
		return deny, true
	}
	return nil, false
}
