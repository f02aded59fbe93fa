package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/models"
)

type userRepo struct {
	q querier
}

func (r userRepo) Get(ctx context.Context, id int64) (*models.User, error) {
	var (
		u     models.User
		roles pq.StringArray
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, roles, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &roles, &u.CreatedAt)
	if err != nil {
		return nil, queryError("get user", "user", id, err)
	}
	u.Roles = []string(roles)
	return &u, nil
}

func (r userRepo) EmailsByRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	return emails(ctx, r.q, "user emails by role",
		`SELECT email FROM users WHERE roles && $1 ORDER BY email`,
		pq.StringArray(roles))
}

type categoryRepo struct {
	q querier
}

func (r categoryRepo) ByIDs(ctx context.Context, ids []int64) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, nigp_code, category, subcategory
		FROM categories WHERE id = ANY($1)
		ORDER BY id`, pq.Int64Array(ids))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("categories by id", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.NIGPCode, &c.Name, &c.Subcategory); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("categories by id", err)
	}
	return out, nil
}

type bidDocumentRepo struct {
	q querier
}

const bidDocumentSelect = `SELECT id, display_name, description, form_href FROM required_bid_documents`

func (r bidDocumentRepo) All(ctx context.Context) ([]models.RequiredBidDocument, error) {
	return r.list(ctx, "list bid documents", bidDocumentSelect+` ORDER BY id`)
}

func (r bidDocumentRepo) ByIDs(ctx context.Context, ids []int64) ([]models.RequiredBidDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, "bid documents by id",
		bidDocumentSelect+` WHERE id = ANY($1) ORDER BY id`, pq.Int64Array(ids))
}

func (r bidDocumentRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]models.RequiredBidDocument, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	defer rows.Close()

	var out []models.RequiredBidDocument
	for rows.Next() {
		var d models.RequiredBidDocument
		if err := rows.Scan(&d.ID, &d.DisplayName, &d.Description, &d.FormHref); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan bid document", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	return out, nil
}

// statusRepo keeps a single row with id 1.
type statusRepo struct {
	q querier
}

func (r statusRepo) Get(ctx context.Context) (models.AppStatus, error) {
	var last sql.NullTime
	err := r.q.QueryRowContext(ctx, `SELECT last_digest_at FROM app_status WHERE id = 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return models.AppStatus{}, nil
	}
	if err != nil {
		return models.AppStatus{}, apperrors.NewQueryExecutionFailedError("get app status", err)
	}
	return models.AppStatus{LastDigestAt: timeOrNil(last)}, nil
}

func (r statusRepo) SetLastDigest(ctx context.Context, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO app_status (id, last_digest_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_digest_at = EXCLUDED.last_digest_at`,
		at.UTC())
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("set last digest", err)
	}
	return nil
}
