package barrier

import (
	"encoding/json"
	"errors"
	"net/http"

	"barrier-gateway/middleware/barrier/domain"
	"barrier-gateway/middleware/barrier/infra"

	log "github.com/sirupsen/logrus"
)

// Inspector é o que o diagnóstico precisa do registro de barreiras.
type Inspector interface {
	Lookup(key string) (domain.Barrier, bool)
	Dumps() map[string]domain.Snapshot
	ForceNext(key string) error
}

var _ Inspector = (*infra.Registry)(nil)

// DiagnosticsHandler expõe o Dump das barreiras:
//
//	GET  /barriers
//	GET  /barriers/{key}
//	POST /barriers/{key}/force
func DiagnosticsHandler(reg Inspector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /barriers", func(w http.ResponseWriter, r *http.Request) {
		dumps := reg.Dumps()
		out := make(map[string]map[string]any, len(dumps))
		for k, s := range dumps {
			out[k] = snapshotJSON(s)
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /barriers/{key}", func(w http.ResponseWriter, r *http.Request) {
		b, ok := reg.Lookup(r.PathValue("key"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": infra.ErrUnknownKey.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snapshotJSON(b.Dump()))
	})

	mux.HandleFunc("POST /barriers/{key}/force", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		err := reg.ForceNext(key)
		switch {
		case errors.Is(err, infra.ErrUnknownKey):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, infra.ErrNotForceable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			log.WithField("barrier", key).Info("next execution forced via diagnostics")
			w.WriteHeader(http.StatusNoContent)
		}
	})

	return mux
}

// StatsReader é o que GET /stats precisa; infra.MemoryStatsStore implementa.
type StatsReader interface {
	Total() infra.Counters
	ByCode() map[domain.DenyCode]int64
	ByKey() map[string]infra.Counters
}

var _ StatsReader = (*infra.MemoryStatsStore)(nil)

// StatsHandler expõe os contadores em memória em GET /stats.
func StatsHandler(stats StatsReader) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"total": stats.Total(),
			"codes": stats.ByCode(),
			"keys":  stats.ByKey(),
		})
	})
	return mux
}

func snapshotJSON(s domain.Snapshot) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = jsonValue(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write diagnostics response")
	}
}
