package domain

import "context"

// SlotPool representa uma capacidade finita de execuções simultâneas
// (ex: buscas a um upstream com limite de conexões).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
