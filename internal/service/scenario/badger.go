package scenario

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

const (
	mentionPrefix = "mention/"
	currentKey    = "scenario/current"
)

// BadgerOptions configures the Badger lookup.
type BadgerOptions struct {
	Dir      string
	InMemory bool
	// Default is stored as the current scenario when no current scenario
	// has been recorded yet.
	Default string
}

// Badger stores mention to scenario assignments in BadgerDB. Mentions
// without an assignment resolve to the current scenario.
type Badger struct {
	db *badger.DB
}

var _ Lookup = (*Badger)(nil)

// NewBadger opens (or creates) the database.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("scenario: badger dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("scenario: open badger: %w", err)
	}

	b := &Badger{db: db}
	if opts.Default != "" {
		err := db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(currentKey))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return txn.Set([]byte(currentKey), []byte(opts.Default))
			}
			return err
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *Badger) ScenarioFor(_ context.Context, mentionID string) (string, error) {
	var id string
	err := b.db.View(func(txn *badger.Txn) error {
		for _, key := range []string{mentionPrefix + mentionID, currentKey} {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id = string(v)
			return nil
		}
		return badger.ErrKeyNotFound
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: mention %s", ErrNotFound, mentionID)
	}
	return id, err
}

// Assign records the scenario of a mention.
func (b *Badger) Assign(_ context.Context, mentionID, scenarioID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(mentionPrefix+mentionID), []byte(scenarioID))
	})
}

// SetCurrent changes the scenario used for unassigned mentions.
func (b *Badger) SetCurrent(_ context.Context, scenarioID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(currentKey), []byte(scenarioID))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger warnings and errors to zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) {
	log.Error().Str("component", "badger").Msgf(f, v...)
}

func (badgerLogger) Warningf(f string, v ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(f, v...)
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
