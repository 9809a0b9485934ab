// Package config loads process-wide settings from environment variables.
//
// Struct fields carry env tags parsed by caarlos0/env; .env files are picked
// up once via godotenv before the first parse. Each configuration type is
// loaded once per process lifetime and cached, so independent packages can
// call Load for their own slice of the environment without re-parsing.
package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu    sync.Mutex
	cache = make(map[reflect.Type]any)

	dotenvOnce sync.Once
)

// Load populates cfg from the environment, returning the cached value when
// the same type was loaded before.
func Load[T any](cfg *T) error {
	// A missing .env file is the normal production case.
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	mu.Lock()
	defer mu.Unlock()

	key := reflect.TypeOf(*cfg)
	if cached, ok := cache[key]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", key, err)
	}

	cache[key] = *cfg
	return nil
}

// MustLoad is Load that panics on failure, for use during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
