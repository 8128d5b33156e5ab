package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/tendant/sitehost/pkg/repository/migrations"
)

// Migrate applies the shared-schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// EnsurePartitions creates the partition for every active tenant.
func EnsurePartitions(ctx context.Context, db *sql.DB, tenants *TenantsRepository) (int, error) {
	list, err := tenants.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range list {
		if err := EnsurePartition(ctx, db, t.SchemaName); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}
