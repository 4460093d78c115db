package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"tenant-ledger/internal/repository"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, q repository.DBExecutor) error {
	if _, err := q.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
