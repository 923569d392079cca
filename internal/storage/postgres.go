package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/feedbackvault/pkg/models"
)

// PostgresBackend is a Store backed by the feedback table in PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// Put upserts the record; a repeated write to the same id replaces every column.
func (p *PostgresBackend) Put(ctx context.Context, rec *models.Feedback) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO feedback (id, rating, rating_numeric, comment, timestamp, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   rating = EXCLUDED.rating,
		   rating_numeric = EXCLUDED.rating_numeric,
		   comment = EXCLUDED.comment,
		   timestamp = EXCLUDED.timestamp,
		   user_agent = EXCLUDED.user_agent`,
		rec.ID, rec.Rating.Value, rec.Rating.Numeric, rec.Comment, rec.Timestamp, rec.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("upserting feedback: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Get(ctx context.Context, id string) (*models.Feedback, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, rating, rating_numeric, comment, timestamp, user_agent
		 FROM feedback WHERE id = $1`,
		id,
	)
	var (
		rec     models.Feedback
		rating  string
		numeric bool
	)
	err := row.Scan(&rec.ID, &rating, &numeric, &rec.Comment, &rec.Timestamp, &rec.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading feedback: %w", err)
	}
	if rec.Rating, err = storedRating(rating, numeric); err != nil {
		return nil, fmt.Errorf("feedback row %q: %w", rec.ID, err)
	}
	return &rec, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}
	return nil
}

// storedRating rebuilds a Rating from its column pair. A numeric flag over text that
// is not a JSON number would be emitted raw into responses, so it is rejected.
func storedRating(value string, numeric bool) (models.Rating, error) {
	if !numeric {
		return models.TextRating(value), nil
	}
	var n json.Number
	if err := json.Unmarshal([]byte(value), &n); err != nil {
		return models.Rating{}, fmt.Errorf("%w: %q", models.ErrInvalidRating, value)
	}
	return models.NumericRating(value), nil
}
