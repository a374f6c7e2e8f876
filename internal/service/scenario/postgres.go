package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const scenarioQuery = `
	SELECT scenario_id
	FROM mentions
	WHERE mention_id = $1`

// Postgres resolves scenarios from the mentions table written by the
// annotation store.
type Postgres struct {
	db    Querier
	close func()
}

var _ Lookup = (*Postgres)(nil)

// NewPostgres wraps an existing connection pool or test double.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db, close: func() {}}
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("scenario: DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{db: pool, close: pool.Close}, nil
}

func (p *Postgres) ScenarioFor(ctx context.Context, mentionID string) (string, error) {
	var id string
	err := p.db.QueryRow(ctx, scenarioQuery, mentionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: mention %s", ErrNotFound, mentionID)
	}
	if err != nil {
		return "", fmt.Errorf("scenario: query mention %s: %w", mentionID, err)
	}
	return id, nil
}

func (p *Postgres) Close() {
	p.close()
}
