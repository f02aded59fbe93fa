// Package postgres implements store.Store on PostgreSQL through lib/pq.
// Id sets (categories, subscriptions) are BIGINT[] columns.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"time"

	"github.com/lib/pq"

	"beacon/internal/common/database"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/store"
)

//go:embed schema.sql
var schema string

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// repos binds every repository to one querier.
type repos struct {
	q querier
}

func (r repos) Opportunities() store.Opportunities { return opportunityRepo{r.q} }
func (r repos) Vendors() store.Vendors             { return vendorRepo{r.q} }
func (r repos) Users() store.Users                 { return userRepo{r.q} }
func (r repos) Questions() store.Questions         { return questionRepo{r.q} }
func (r repos) Categories() store.Categories       { return categoryRepo{r.q} }
func (r repos) BidDocuments() store.BidDocuments   { return bidDocumentRepo{r.q} }
func (r repos) Status() store.AppStatus            { return statusRepo{r.q} }

type Store struct {
	repos
	client *database.PostgresClient
}

var _ store.Store = (*Store)(nil)

func New(client *database.PostgresClient) *Store {
	return &Store{repos: repos{q: client.DB}, client: client}
}

// InTx runs fn on a transaction. Rows read with GetForUpdate stay locked
// until fn returns.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Repos) error) error {
	return s.client.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, repos{q: tx})
	})
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return apperrors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}

// queryError maps driver errors onto the shared taxonomy.
func queryError(op, entity string, id interface{}, err error) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(entity, id)
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503": // foreign_key_violation
			return apperrors.NewNotFoundError(entity, id)
		case "23505": // unique_violation
			return apperrors.NewValidationError(apperrors.FieldError{
				Field:   pqErr.Column,
				Rule:    "unique",
				Message: "already exists",
			})
		}
	}
	return apperrors.NewQueryExecutionFailedError(op, err)
}

// expectRow fails with NotFound when an update or delete touched nothing.
func expectRow(res sql.Result, entity string, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("rows affected", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(entity, id)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func timeOrNil(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func idOrNil(id sql.NullInt64) *int64 {
	if !id.Valid {
		return nil
	}
	v := id.Int64
	return &v
}

// ids never hands lib/pq a nil slice; NULL would violate NOT NULL.
func ids(v []int64) pq.Int64Array {
	if v == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(v)
}
