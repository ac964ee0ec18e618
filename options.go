package shipper

import (
	"errors"
	"log/slog"

	"github.com/meigma/shipper/internal/secret"
)

// Option configures a Publisher.
type Option func(*Publisher) error

// WithLogger sets the logger for debug output.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) error {
		if logger == nil {
			return errors.New("logger is nil")
		}
		p.logger = logger
		return nil
	}
}

// WithFormat sets the archive format used by the default archiver.
// Ignored when WithArchiver is used.
func WithFormat(format Format) Option {
	return func(p *Publisher) error {
		p.format = format
		return nil
	}
}

// WithArchiver replaces the built-in archiver.
func WithArchiver(a Archiver) Option {
	return func(p *Publisher) error {
		p.archiver = a
		return nil
	}
}

// WithRegistry sets the release registry consulted by providers that attach
// to a source-control release. Without one, such providers fail the run.
func WithRegistry(r ReleaseRegistry) Option {
	return func(p *Publisher) error {
		p.registry = r
		return nil
	}
}

// WithSecret sets the transform applied to the outcome of early releases.
func WithSecret(s SecretTransform) Option {
	return func(p *Publisher) error {
		p.secret = s
		return nil
	}
}

// WithSecretKey encrypts the outcome of early releases with a key derived
// from secret. An empty secret leaves encryption unconfigured.
func WithSecretKey(key string) Option {
	return func(p *Publisher) error {
		if key == "" {
			return nil
		}
		c, err := secret.New(key)
		if err != nil {
			return err
		}
		p.secret = c
		return nil
	}
}

// WithObserver registers an observer for lifecycle events.
// Multiple observers receive every event in registration order.
func WithObserver(o Observer) Option {
	return func(p *Publisher) error {
		if o != nil {
			p.observers = append(p.observers, o)
		}
		return nil
	}
}
