// Package scenario resolves the scenario a mention was recorded in.
package scenario

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no scenario is known for a mention.
var ErrNotFound = errors.New("scenario: not found")

// Lookup maps a mention id to its scenario id.
type Lookup interface {
	ScenarioFor(ctx context.Context, mentionID string) (string, error)
}

// Static resolves every mention to a single configured scenario.
type Static struct {
	ID string
}

func (s Static) ScenarioFor(_ context.Context, mentionID string) (string, error) {
	if s.ID == "" {
		return "", fmt.Errorf("%w: mention %s", ErrNotFound, mentionID)
	}
	return s.ID, nil
}

// Backend names accepted by Config.Backend.
const (
	BackendStatic   = "static"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config selects a Lookup implementation.
type Config struct {
	Backend     string
	StaticID    string
	BadgerDir   string
	DatabaseURL string
}

// Open builds the configured Lookup. The returned close function releases
// any database handle and is never nil.
func Open(ctx context.Context, cfg Config) (Lookup, func(), error) {
	switch cfg.Backend {
	case "", BackendStatic:
		return Static{ID: cfg.StaticID}, func() {}, nil
	case BackendBadger:
		b, err := NewBadger(BadgerOptions{Dir: cfg.BadgerDir, Default: cfg.StaticID})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case BackendPostgres:
		p, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("scenario: unknown backend %q", cfg.Backend)
	}
}
