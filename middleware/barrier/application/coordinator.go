package application

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"barrier-gateway/middleware/barrier/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Fetcher busca um dataset no upstream. As chaves do mapa retornado são
// mescladas em Coordinator.Data.
type Fetcher func(ctx context.Context) (map[string]any, error)

type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailed  Outcome = "failed"
	// dataset sem barreira, sem fetcher ou sem vaga de busca
	OutcomeSkipped Outcome = "skipped"
)

// Report descreve o que aconteceu com um dataset num ciclo.
type Report struct {
	Dataset string
	Outcome Outcome
	Code    domain.DenyCode
	Err     error
}

// Coordinator busca datasets de um upstream, cada um protegido pela sua barreira.
//
// Para cada dataset pedido: barreira negou -> pula o ciclo; liberou -> busca,
// e reporta Success ou Fail à barreira conforme o resultado.
type Coordinator struct {
	service  Service
	slots    FetchSlots
	inflight InFlight

	mu       sync.Mutex
	fetchers map[string]Fetcher
	order    []string
	data     map[string]any
}

type CoordinatorOption func(*Coordinator)

func WithStats(s domain.StatsStore) CoordinatorOption {
	return func(c *Coordinator) { c.service.Stats = s }
}

func WithCoordinatorClock(clock domain.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.service.Clock = clock }
}

func WithFetchSlots(slots FetchSlots) CoordinatorOption {
	return func(c *Coordinator) { c.slots = slots }
}

func NewCoordinator(barriers Source, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		service:  Service{Source: barriers},
		fetchers: make(map[string]Fetcher),
		data:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register associa o fetcher de um dataset. A barreira vem de Source pelo mesmo nome.
func (c *Coordinator) Register(name string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fetchers[name]; !ok {
		c.order = append(c.order, name)
	}
	c.fetchers[name] = fetch
}

func (c *Coordinator) Datasets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Data devolve uma cópia dos últimos dados mesclados.
func (c *Coordinator) Data() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.data)
}

// Update roda um ciclo sobre os datasets pedidos (todos, se nenhum for
// informado) e devolve os dados mesclados mais um Report por dataset.
func (c *Coordinator) Update(ctx context.Context, names ...string) (map[string]any, []Report) {
	if len(names) == 0 {
		names = c.Datasets()
	}
	names = uniqueNames(names)
	logger := log.WithField("cycle", uuid.NewString())
	logger.Debugf("updating datasets: %v", names)

	reports := make([]Report, len(names))
	results := make([]map[string]any, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		dlog := logger.WithField("dataset", name)
		reports[i] = Report{Dataset: name}

		fetch, ok := c.fetcher(name)
		if !ok {
			dlog.Debug("ignored: no fetcher registered")
			reports[i].Outcome = OutcomeSkipped
			continue
		}
		if _, err := c.service.Source.Get(name); err != nil {
			dlog.WithError(err).Debug("ignored: no barrier defined")
			reports[i].Outcome = OutcomeSkipped
			reports[i].Err = err
			continue
		}

		// outro Update concorrente já está buscando este dataset
		done, ok := c.inflight.TryStart(name)
		if !ok {
			dlog.Debug("ignored: update already in flight")
			reports[i].Outcome = OutcomeSkipped
			reports[i].Err = ErrInFlight
			continue
		}

		dec := c.service.Decide(ctx, name)
		if !dec.Allowed {
			done()
			dlog.WithField("code", dec.Code).Debugf("update denied: %s", dec.Reason)
			reports[i].Outcome = OutcomeDenied
			reports[i].Code = dec.Code
			continue
		}
		dlog.Debug("update allowed")

		wg.Add(1)
		go func(i int, name string, fetch Fetcher, dlog *log.Entry) {
			defer wg.Done()
			defer done()
			results[i], reports[i] = c.fetch(ctx, name, fetch, dlog)
		}(i, name, fetch, dlog)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		maps.Copy(c.data, r)
	}
	return maps.Clone(c.data), reports
}

func (c *Coordinator) fetch(ctx context.Context, name string, fetch Fetcher, dlog *log.Entry) (map[string]any, Report) {
	release, err := c.slots.Acquire(ctx)
	if err != nil {
		// nenhuma tentativa foi feita; a barreira não é informada
		dlog.WithError(err).Warn("update skipped: no fetch slot")
		return nil, Report{Dataset: name, Outcome: OutcomeSkipped, Err: err}
	}
	defer release()

	data, err := safeFetch(ctx, fetch)
	if err != nil {
		c.service.Report(ctx, name, false)
		dlog.WithError(err).Warn("update failed")
		return nil, Report{Dataset: name, Outcome: OutcomeFailed, Err: err}
	}

	c.service.Report(ctx, name, true)
	dlog.Debug("successfully updated")
	return data, Report{Dataset: name, Outcome: OutcomeUpdated}
}

// uniqueNames remove repetições mantendo a ordem: um dataset é decidido e
// buscado no máximo uma vez por ciclo.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (c *Coordinator) fetcher(name string) (Fetcher, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fetchers[name]
	return f, ok && f != nil
}

// safeFetch transforma um panic do fetcher em erro e conta como falha.
func safeFetch(ctx context.Context, fetch Fetcher) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	return fetch(ctx)
}

// Run repete Update a cada interval até ctx encerrar.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("coordinator: interval must be > 0")
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			// Wait desiste antes quando a espera ultrapassaria o deadline
			<-ctx.Done()
			return ctx.Err()
		}
		_, reports := c.Update(ctx)
		logCycle(reports)
	}
}

func logCycle(reports []Report) {
	counts := make(map[Outcome]int, 4)
	for _, r := range reports {
		counts[r.Outcome]++
	}
	log.WithFields(log.Fields{
		"updated": counts[OutcomeUpdated],
		"denied":  counts[OutcomeDenied],
		"failed":  counts[OutcomeFailed],
		"skipped": counts[OutcomeSkipped],
	}).Info("update cycle finished")
}
