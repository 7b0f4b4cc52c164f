package infra

import (
	"fmt"
	"time"
)

// Window é uma faixa inclusiva de minutos da hora, ex: {0, 10} = minutos 0..10
// de toda hora.
type Window struct {
	Low  int
	High int
}

func (w Window) Validate() error {
	if w.Low < 0 || w.Low > 59 || w.High < 0 || w.High > 59 {
		return fmt.Errorf("window minutes must be within 0..59, got [%d, %d]", w.Low, w.High)
	}
	if w.Low > w.High {
		return fmt.Errorf("window low minute %d is after high minute %d", w.Low, w.High)
	}
	return nil
}

// Contains avalia o minuto da hora de t já na zona desejada.
func (w Window) Contains(t time.Time) bool {
	m := t.Minute()
	return w.Low <= m && m <= w.High
}

// Width é a largura da janela; limita a um sucesso por intervalo desse tamanho.
func (w Window) Width() time.Duration {
	return time.Duration(w.High-w.Low) * time.Minute
}

// NextOpen retorna o próximo instante, em loc, em que o minuto da hora vale Low.
//
// A conta é feita em tempo absoluto a partir do início da hora local, então
// mudanças de horário de verão não deslocam o resultado.
func (w Window) NextOpen(now time.Time, loc *time.Location) time.Time {
	l := now.In(loc)
	elapsed := time.Duration(l.Minute())*time.Minute +
		time.Duration(l.Second())*time.Second +
		time.Duration(l.Nanosecond())
	next := l.Add(-elapsed).Add(time.Duration(w.Low) * time.Minute)
	if l.Minute() >= w.Low {
		next = next.Add(time.Hour)
	}
	return next.In(loc)
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.Low, w.High)
}
