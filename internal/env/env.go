// Package env lê a configuração dos binários a partir de variáveis de ambiente.
//
// Valores inválidos caem no default, como valores ausentes.
package env

import (
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

func Default(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func IntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func IsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func BoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func DurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// SetupLogging configura o logrus a partir de LOG_LEVEL (default info).
func SetupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(Default("LOG_LEVEL", "info"))
	if err != nil {
		log.WithError(err).Warn("invalid LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
