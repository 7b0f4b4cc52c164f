package application

import (
	"errors"
	"sync"
)

// ErrInFlight indica que já existe uma tentativa em andamento para a chave.
var ErrInFlight = errors.New("attempt already in flight")

// InFlight permite no máximo uma tentativa em andamento por chave, do Decide
// até o Report. O valor zero está pronto para uso.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// TryStart reserva key. Com ok=true, done deve ser chamada exatamente uma vez
// depois do Report.
func (f *InFlight) TryStart(key string) (done func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, busy := f.keys[key]; busy {
		return nil, false
	}
	f.keys[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.keys, key)
			f.mu.Unlock()
		})
	}, true
}

// Len devolve quantas chaves estão com tentativa em andamento.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
