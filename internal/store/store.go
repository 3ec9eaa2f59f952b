package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"distribution-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txKey struct{}

type savepointKey struct{}

// dbtx is satisfied by both *sqlx.DB and *sqlx.Tx
type dbtx interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// conn returns the transaction bound to ctx, or the pool
func (s *Store) conn(ctx context.Context) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a transaction carried by the context.
// A nested call joins the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithSavepoint runs fn inside a savepoint of the enclosing transaction.
// When fn fails only its own writes are undone; the transaction stays usable.
func (s *Store) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return s.WithTx(ctx, fn)
	}

	depth, _ := ctx.Value(savepointKey{}).(int)
	depth++
	name := fmt.Sprintf("sp_%d", depth)
	spCtx := context.WithValue(ctx, savepointKey{}, depth)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(spCtx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			// only the rollback failure is wrapped so callers see an infrastructure error
			return fmt.Errorf("failed to roll back savepoint after %q: %w", err.Error(), rbErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

const (
	foreignKeyViolation pq.ErrorCode = "23503"
	uniqueViolation     pq.ErrorCode = "23505"
	checkViolation      pq.ErrorCode = "23514"
)

// constraintErrors names the schema constraints a caller can act on
var constraintErrors = map[string]error{
	"inventory_units_serial_code_key":    models.ErrDuplicateSerial,
	"inventory_units_serial_code_check":  models.ErrInvalidSerial,
	"order_devices_pkey":                 models.ErrDuplicateSerialArg,
	"order_devices_serial_code_check":    models.ErrInvalidSerial,
	"reservations_quantity_check":        models.ErrInvalidQuantity,
	"orders_device_count_check":          models.ErrInvalidQuantity,
	"inventory_units_status_reservation": models.ErrInvalidState,
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// mapIntegrity turns constraint violations into actionable domain errors
func mapIntegrity(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if mapped, ok := constraintErrors[pqErr.Constraint]; ok {
		return fmt.Errorf("%s: %w", op, mapped)
	}

	switch pqErr.Code {
	case foreignKeyViolation:
		return fmt.Errorf("%s: %w", op, models.ErrReferenceViolation)
	case uniqueViolation, checkViolation:
		return fmt.Errorf("%s: %w (%s)", op, models.ErrConstraintViolation, pqErr.Constraint)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
