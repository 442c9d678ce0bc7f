package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations are additive: each step only creates tables or indexes, so data
// written under an older schema version survives an upgrade.
var Migrations = migrate.NewMigrations()

func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	err := migrator.Init(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return group, nil
}

// SchemaVersion is the name of the newest applied migration.
func SchemaVersion(ctx context.Context, db *bun.DB) (string, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	applied, err := migrator.AppliedMigrations(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(applied) == 0 {
		return "", nil
	}
	latest := applied[0]
	for _, m := range applied[1:] {
		if m.Name > latest.Name {
			latest = m
		}
	}
	return latest.Name, nil
}
