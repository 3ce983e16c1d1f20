package postgres

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
