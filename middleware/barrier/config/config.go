// Package config carrega a definição das barreiras a partir de YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"barrier-gateway/middleware/barrier/domain"
	"barrier-gateway/middleware/barrier/infra"

	"gopkg.in/yaml.v3"
)

const (
	KindNoop   = "noop"
	KindDelta  = "delta"
	KindWindow = "window"
)

// ErrNoSpec indica que não há definição (nem default) para a chave.
var ErrNoSpec = errors.New("no barrier spec")

// Spec descreve uma barreira.
type Spec struct {
	Kind                 string        `yaml:"kind"`
	MaxAge               time.Duration `yaml:"max_age"`
	AllowedWindowMinutes []int         `yaml:"allowed_window_minutes"`
	MaxRetries           int           `yaml:"max_retries"`
	Location             string        `yaml:"location"`
	// Path só é usado pelo poller: caminho do dataset no upstream.
	Path string `yaml:"path"`
}

// File é o conteúdo de BARRIERS_FILE.
type File struct {
	Default  *Spec           `yaml:"default"`
	Barriers map[string]Spec `yaml:"barriers"`
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read barriers file: %w", err)
	}
	return Parse(data)
}

// Parse decodifica e valida todas as definições.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse barriers file: %w", err)
	}
	if f.Default != nil {
		if err := f.Default.Validate(); err != nil {
			return File{}, fmt.Errorf("barrier default: %w", err)
		}
	}
	for _, name := range f.Names() {
		spec, _ := f.SpecFor(name)
		if err := spec.Validate(); err != nil {
			return File{}, fmt.Errorf("barrier %q: %w", name, err)
		}
	}
	return f, nil
}

// Names devolve as chaves declaradas em ordem alfabética.
func (f File) Names() []string {
	names := make([]string, 0, len(f.Barriers))
	for k := range f.Barriers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SpecFor resolve a definição de key, completando campos vazios com o default.
func (f File) SpecFor(key string) (Spec, bool) {
	spec, ok := f.Barriers[key]
	switch {
	case ok && f.Default != nil:
		return spec.withDefaults(*f.Default), true
	case ok:
		return spec, true
	case f.Default != nil:
		return *f.Default, true
	}
	return Spec{}, false
}

// Factory cria barreiras para infra.Registry a partir do arquivo.
func (f File) Factory(opts ...infra.Option) infra.Factory {
	return func(key string) (domain.Barrier, error) {
		spec, ok := f.SpecFor(key)
		if !ok {
			return nil, fmt.Errorf("%w for %q", ErrNoSpec, key)
		}
		keyOpts := append(append([]infra.Option(nil), opts...), infra.WithName(key))
		return spec.Build(keyOpts...)
	}
}

func (s Spec) withDefaults(d Spec) Spec {
	if s.Kind == "" {
		s.Kind = d.Kind
	}
	if s.MaxAge == 0 {
		s.MaxAge = d.MaxAge
	}
	if len(s.AllowedWindowMinutes) == 0 {
		s.AllowedWindowMinutes = d.AllowedWindowMinutes
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = d.MaxRetries
	}
	if s.Location == "" {
		s.Location = d.Location
	}
	return s
}

func (s Spec) Validate() error {
	_, err := s.Build()
	return err
}

// Build constrói a barreira descrita. Falha em vez de adivinhar valores.
func (s Spec) Build(opts ...infra.Option) (domain.Barrier, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case KindNoop:
		return infra.NoopBarrier{}, nil

	case KindDelta, "time_delta":
		return infra.NewTimeDeltaBarrier(s.MaxAge, opts...)

	case KindWindow, "time_window":
		if len(s.AllowedWindowMinutes) != 2 {
			return nil, fmt.Errorf("allowed_window_minutes must have 2 values, got %d", len(s.AllowedWindowMinutes))
		}
		maxRetries := s.MaxRetries
		if maxRetries == 0 {
			maxRetries = infra.DefaultMaxRetries
		}
		if s.Location != "" {
			loc, err := time.LoadLocation(s.Location)
			if err != nil {
				return nil, fmt.Errorf("invalid location %q: %w", s.Location, err)
			}
			opts = append([]infra.Option{infra.WithLocation(loc)}, opts...)
		}
		w := infra.Window{Low: s.AllowedWindowMinutes[0], High: s.AllowedWindowMinutes[1]}
		return infra.NewTimeWindowBarrier(w, maxRetries, s.MaxAge, opts...)

	case "":
		return nil, errors.New("barrier kind is required")
	default:
		return nil, fmt.Errorf("unknown barrier kind %q", s.Kind)
	}
}
