// Package circuitbreaker provides circuit breaker functionality using Sony's gobreaker
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before transitioning to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the maximum number of requests allowed in half-open state
	MaxConcurrentRequests int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// Predefined configurations for common use cases
var (
	// HTTPConfig is for provider API calls that should fail fast
	HTTPConfig = Config{
		MaxFailures:           3,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 2,
	}

	// OAuthConfig is for OAuth2 token requests which are critical but retryable
	OAuthConfig = Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
)

// GoBreakerAdapter wraps Sony's gobreaker behind a small interface
type GoBreakerAdapter struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewGoBreaker creates a new circuit breaker using Sony's gobreaker implementation
func NewGoBreaker(name string, config Config, logger logging.Logger) *GoBreakerAdapter {
	if err := config.Validate(); err != nil {
		if logger != nil {
			logger.Warn("Invalid circuit breaker config, using defaults",
				logging.Field{Key: "error", Value: err.Error()},
				logging.Field{Key: "name", Value: name},
			)
		}
		config = DefaultConfig()
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client-side errors say nothing about the remote's health
			if appErr, ok := err.(*errors.AppError); ok {
				switch appErr.Type {
				case errors.ErrTypeValidation, errors.ErrTypeNotFound:
					return true
				}
			}
			return false
		},
	}

	return &GoBreakerAdapter{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs the given function within the circuit breaker
func (g *GoBreakerAdapter) Execute(ctx context.Context, fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState {
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' is open", g.name), err)
	}
	if err == gobreaker.ErrTooManyRequests {
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' has too many requests", g.name), err)
	}

	return err
}

// IsOpen returns true if the circuit breaker is open
func (g *GoBreakerAdapter) IsOpen() bool {
	return g.breaker.State() == gobreaker.StateOpen
}

// Counts returns the current counts from gobreaker
func (g *GoBreakerAdapter) Counts() gobreaker.Counts {
	return g.breaker.Counts()
}
