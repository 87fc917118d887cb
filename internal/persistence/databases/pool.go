package databases

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool creates a Postgres connection pool using the standard defaults.
// Exported so pool_test.go can exercise newPgPool's error path (invalid DSN)
// without a Manager; factory.go is the only caller of newPgPool itself.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return newPgPool(ctx, dsn)
}
