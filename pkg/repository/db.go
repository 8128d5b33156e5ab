package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tendant/sitehost/pkg/domain"
)

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewDB opens a connection pool and verifies it with a ping.
func NewDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Querier is implemented by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type partitionKey struct{}

// WithPartition returns a context carrying the tenant's storage partition
// (Postgres schema). Repositories that store tenant data read it from the
// context on every call; nothing is set on shared connections.
func WithPartition(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, partitionKey{}, schema)
}

// PartitionFromContext returns the partition stored by WithPartition.
func PartitionFromContext(ctx context.Context) (string, bool) {
	schema, ok := ctx.Value(partitionKey{}).(string)
	return schema, ok && schema != ""
}

// InPartition runs fn in a transaction whose search_path is the partition
// bound to ctx. The setting is transaction-local and is discarded on commit
// or rollback, so the pooled connection carries no tenant state afterwards.
func InPartition(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	schema, ok := PartitionFromContext(ctx)
	if !ok {
		return domain.ErrPartitionNotSet
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('search_path', $1, true)`, searchPath(schema)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func searchPath(schema string) string {
	return pq.QuoteIdentifier(schema) + ", public"
}
