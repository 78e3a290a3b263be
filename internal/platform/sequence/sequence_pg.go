package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGGenerator allocates identifiers from the id_sequence table. The upsert
// increments and returns the counter in a single statement, so concurrent
// callers never observe the same value.
type PGGenerator struct {
	pool *pgxpool.Pool
}

func NewPGGenerator(pool *pgxpool.Pool) *PGGenerator {
	return &PGGenerator{pool: pool}
}

func (g *PGGenerator) Next(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("sequence prefix is required")
	}
	var value int64
	err := g.pool.QueryRow(ctx, `
		INSERT INTO id_sequence (prefix, value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET value = id_sequence.value + 1
		RETURNING value`, prefix).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("next id for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d", prefix, value), nil
}
