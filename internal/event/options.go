package event

import (
	"log/slog"

	"github.com/google/uuid"
)

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	clock  Clock
	logger *slog.Logger
	policy FailurePolicy
	newID  func() string
}

func defaultBusConfig() busConfig {
	return busConfig{
		clock:  systemClock{},
		logger: slog.Default(),
		policy: PolicyIsolate,
		newID:  uuid.NewString,
	}
}

// WithClock sets the time source used to measure work and handlers.
func WithClock(c Clock) BusOption {
	return func(cfg *busConfig) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithLogger sets the logger used for subscriber failures.
func WithLogger(l *slog.Logger) BusOption {
	return func(cfg *busConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithFailurePolicy sets the initial subscriber failure policy.
func WithFailurePolicy(p FailurePolicy) BusOption {
	return func(cfg *busConfig) {
		cfg.policy = p
	}
}

// WithIDGenerator replaces the subscription ID generator.
func WithIDGenerator(fn func() string) BusOption {
	return func(cfg *busConfig) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}
