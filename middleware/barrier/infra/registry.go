package infra

import (
	"errors"
	"sort"
	"sync"
	"time"

	"barrier-gateway/middleware/barrier/domain"
)

var (
	ErrUnknownKey   = errors.New("barrier: unknown key")
	ErrNotForceable = errors.New("barrier: does not support force")
)

// Factory cria a barreira de uma chave vista pela primeira vez.
type Factory func(key string) (domain.Barrier, error)

// Registry mantém uma barreira por chave (ex: dataset, IP, API key), com
// acesso serializado por instância e limpeza periódica das chaves ociosas.
type Registry struct {
	mu           sync.Mutex
	entries      map[string]*registryEntry
	factory      Factory
	clock        domain.Clock
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type registryEntry struct {
	barrier  *lockedBarrier
	lastSeen time.Time
	// pinned: registrada explicitamente, nunca expira
	pinned bool
}

type RegistryOption func(*Registry)

// WithIdleTTL define após quanto tempo sem uso uma chave criada pela factory
// é descartada (junto com seu estado). Zero desliga a expiração.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RegistryOption {
	return func(r *Registry) { r.cleanupEvery = d }
}

func WithRegistryClock(c domain.Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRegistry cria o registro. Com factory nil, só chaves registradas existem.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:      make(map[string]*registryEntry),
		factory:      factory,
		clock:        domain.SystemClock{},
		idleTTL:      24 * time.Hour,
		cleanupEvery: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) CleanupEvery() time.Duration { return r.cleanupEvery }

// Register fixa uma barreira para key, substituindo a anterior.
func (r *Registry) Register(key string, b domain.Barrier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = &registryEntry{barrier: &lockedBarrier{b: b}, lastSeen: r.clock.Now(), pinned: true}
}

// Get devolve a barreira de key, criando-a pela factory se preciso.
// A barreira devolvida é segura para uso concorrente.
func (r *Registry) Get(key string) (domain.Barrier, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent.barrier, nil
	}
	if r.factory == nil {
		return nil, ErrUnknownKey
	}

	b, err := r.factory(key)
	if err != nil {
		return nil, err
	}
	lb := &lockedBarrier{b: b}
	r.entries[key] = &registryEntry{barrier: lb, lastSeen: now}
	return lb, nil
}

// Lookup devolve a barreira de key sem criar nem renovar o lastSeen.
func (r *Registry) Lookup(key string) (domain.Barrier, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return ent.barrier, true
}

// ForceNext aciona o force da barreira de key.
func (r *Registry) ForceNext(key string) error {
	r.mu.Lock()
	ent, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownKey
	}
	if !ent.barrier.forceNext() {
		return ErrNotForceable
	}
	return nil
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Dumps devolve o Snapshot de todas as barreiras.
func (r *Registry) Dumps() map[string]domain.Snapshot {
	r.mu.Lock()
	barriers := make(map[string]*lockedBarrier, len(r.entries))
	for k, ent := range r.entries {
		barriers[k] = ent.barrier
	}
	r.mu.Unlock()

	out := make(map[string]domain.Snapshot, len(barriers))
	for k, b := range barriers {
		out[k] = b.Dump()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) Cleanup() {
	if r.idleTTL <= 0 {
		return
	}
	now := r.clock.Now()
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, ent := range r.entries {
		if ent.pinned || !ent.lastSeen.Before(cutoff) {
			continue
		}
		// um cooldown ativo sobrevive à ociosidade
		if ent.barrier.cooldownUntil().After(now) {
			continue
		}
		delete(r.entries, k)
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (r *Registry) StartJanitor(ctx DoneContext) {
	if r.cleanupEvery <= 0 || r.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

// lockedBarrier serializa as chamadas a uma barreira.
type lockedBarrier struct {
	mu sync.Mutex
	b  domain.Barrier
}

func (l *lockedBarrier) Check(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Check(now)
}

func (l *lockedBarrier) Success(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Success(now)
}

func (l *lockedBarrier) Fail(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Fail(now)
}

func (l *lockedBarrier) Dump() domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Dump()
}

func (l *lockedBarrier) cooldownUntil() time.Time {
	until, _ := l.Dump()[domain.AttrCooldown].(time.Time)
	return until
}

func (l *lockedBarrier) forceNext() bool {
	f, ok := l.b.(domain.Forcer)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f.ForceNext()
	return true
}
