package domain

import "time"

// DefaultZone é a zona em que as barreiras guardam e comparam instantes.
var DefaultZone = time.UTC

// Normalize prepara um timestamp recebido por um método de barreira.
//
// Zero significa "agora" segundo clock (SystemClock se nil). Qualquer outro
// valor é convertido para DefaultZone, preservando o instante; nunca é
// apenas reetiquetado.
func Normalize(t time.Time, clock Clock) time.Time {
	if t.IsZero() {
		if clock == nil {
			clock = SystemClock{}
		}
		t = clock.Now()
	}
	return t.In(DefaultZone)
}
