package main

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"barrier-gateway/internal/env"

	log "github.com/sirupsen/logrus"
)

// Upstream que falha de propósito (FAIL_RATE) para exercitar retentativas e
// cooldown das barreiras via gateway ou poller.
func main() {
	env.SetupLogging()

	addr := env.Default("LISTEN_ADDR", ":8081")
	failRate := failRateFromEnv()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{dataset}", func(w http.ResponseWriter, r *http.Request) {
		dataset := r.PathValue("dataset")
		if rand.Float64() < failRate {
			log.WithField("dataset", dataset).Info("answering 503 on purpose")
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			dataset: map[string]any{
				"value":      rand.IntN(1000),
				"updated_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
		log.WithField("dataset", dataset).Info("request served")
	})

	log.Infof("upstream-instavel listening on %s (fail rate %.2f)", addr, failRate)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func failRateFromEnv() float64 {
	v, err := strconv.ParseFloat(env.Default("FAIL_RATE", "0.3"), 64)
	if err != nil || v < 0 || v > 1 {
		log.Warn("FAIL_RATE must be within 0..1, using 0.3")
		return 0.3
	}
	return v
}
