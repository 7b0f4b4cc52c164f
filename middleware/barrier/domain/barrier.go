package domain

import "time"

// Nomes estáveis dos atributos expostos por Dump.
const (
	AttrMaxAge               = "max_age"
	AttrMaxRetries           = "max_retries"
	AttrAllowedWindowMinutes = "allowed_window_minutes"
	AttrCooldown             = "cooldown"
	AttrForceNext            = "force_next"
	AttrLastSuccess          = "last_success"
	AttrFailures             = "failures"
)

// Barrier representa uma máquina de estados que libera ou nega a próxima tentativa.
//
// Em todos os métodos, um `now` zero significa "ler o relógio da barreira".
// O contrato de uso é: Check antes de cada tentativa e exatamente um de
// Success/Fail depois dela. A barreira não valida essa ordem.
//
// Implementações não são seguras para uso concorrente; quem compartilha uma
// instância precisa serializar o acesso.
type Barrier interface {
	// Check retorna nil se a tentativa é permitida ou um *DenyError.
	Check(now time.Time) error
	Success(now time.Time)
	Fail(now time.Time)
	// Dump retorna uma cópia da configuração e do estado atual.
	Dump() Snapshot
}

// Forcer é implementado pelas barreiras que aceitam liberar a próxima
// execução incondicionalmente.
type Forcer interface {
	ForceNext()
}

// Snapshot é a visão somente leitura de uma barreira, indexada pelos Attr*.
// Instantes que nunca aconteceram aparecem como nil.
type Snapshot map[string]any

// Instant converte um instante opcional para o valor usado em Snapshot.
func Instant(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
