package postgres

import (
	"context"

	"github.com/lib/pq"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/validation"
	"beacon/internal/models"
)

const vendorColumns = `
	id, email, business_name, first_name, last_name, phone_number, fax_number,
	minority_owned, veteran_owned, woman_owned, disadvantaged_owned,
	category_ids, opportunity_ids, subscribed_to_newsletter,
	created_at, updated_at`

type vendorRepo struct {
	q querier
}

func scanVendor(row rowScanner) (*models.Vendor, error) {
	var (
		v              models.Vendor
		categoryIDs    pq.Int64Array
		opportunityIDs pq.Int64Array
	)
	err := row.Scan(
		&v.ID, &v.Email, &v.BusinessName, &v.FirstName, &v.LastName, &v.PhoneNumber, &v.FaxNumber,
		&v.MinorityOwned, &v.VeteranOwned, &v.WomanOwned, &v.DisadvantagedOwned,
		&categoryIDs, &opportunityIDs, &v.SubscribedToNewsletter,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.CategoryIDs = models.UniqueIDs(categoryIDs)
	v.OpportunityIDs = models.UniqueIDs(opportunityIDs)
	return &v, nil
}

func (r vendorRepo) Get(ctx context.Context, id int64) (*models.Vendor, error) {
	v, err := scanVendor(r.q.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		return nil, queryError("get vendor", "vendor", id, err)
	}
	return v, nil
}

func (r vendorRepo) GetByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	email = validation.NormalizeEmail(email)
	v, err := scanVendor(r.q.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE email = $1`, email))
	if err != nil {
		return nil, queryError("get vendor by email", "vendor", email, err)
	}
	return v, nil
}

func (r vendorRepo) Create(ctx context.Context, v *models.Vendor) error {
	v.Email = validation.NormalizeEmail(v.Email)
	v.CategoryIDs = models.UniqueIDs(v.CategoryIDs)
	v.OpportunityIDs = models.UniqueIDs(v.OpportunityIDs)

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO vendors (
			email, business_name, first_name, last_name, phone_number, fax_number,
			minority_owned, veteran_owned, woman_owned, disadvantaged_owned,
			category_ids, opportunity_ids, subscribed_to_newsletter
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		v.Email, v.BusinessName, v.FirstName, v.LastName, v.PhoneNumber, v.FaxNumber,
		v.MinorityOwned, v.VeteranOwned, v.WomanOwned, v.DisadvantagedOwned,
		ids(v.CategoryIDs), ids(v.OpportunityIDs), v.SubscribedToNewsletter,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return vendorError("create vendor", v.ID, err)
	}
	return nil
}

func (r vendorRepo) Save(ctx context.Context, v *models.Vendor) error {
	v.Email = validation.NormalizeEmail(v.Email)
	v.CategoryIDs = models.UniqueIDs(v.CategoryIDs)
	v.OpportunityIDs = models.UniqueIDs(v.OpportunityIDs)

	err := r.q.QueryRowContext(ctx, `
		UPDATE vendors SET
			email = $2, business_name = $3, first_name = $4, last_name = $5,
			phone_number = $6, fax_number = $7,
			minority_owned = $8, veteran_owned = $9, woman_owned = $10, disadvantaged_owned = $11,
			category_ids = $12, opportunity_ids = $13, subscribed_to_newsletter = $14,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		v.ID, v.Email, v.BusinessName, v.FirstName, v.LastName,
		v.PhoneNumber, v.FaxNumber,
		v.MinorityOwned, v.VeteranOwned, v.WomanOwned, v.DisadvantagedOwned,
		ids(v.CategoryIDs), ids(v.OpportunityIDs), v.SubscribedToNewsletter,
	).Scan(&v.UpdatedAt)
	if err != nil {
		return vendorError("save vendor", v.ID, err)
	}
	return nil
}

// vendorError reports the email unique constraint on the email field.
func vendorError(op string, id int64, err error) error {
	err = queryError(op, "vendor", id, err)
	if apperrors.IsValidation(err) {
		return apperrors.NewValidationError(apperrors.FieldError{
			Field: "email", Rule: "unique", Message: "a vendor with this email already exists",
		})
	}
	return err
}

func (r vendorRepo) All(ctx context.Context) ([]*models.Vendor, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list vendors", err)
	}
	defer rows.Close()

	var out []*models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan vendor", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list vendors", err)
	}
	return out, nil
}

func (r vendorRepo) EmailsByCategories(ctx context.Context, categoryIDs []int64) ([]string, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	return emails(ctx, r.q, "vendor emails by category",
		`SELECT email FROM vendors WHERE category_ids && $1 ORDER BY email`,
		pq.Int64Array(categoryIDs))
}

func (r vendorRepo) EmailsByOpportunity(ctx context.Context, opportunityID int64) ([]string, error) {
	return emails(ctx, r.q, "vendor emails by opportunity",
		`SELECT email FROM vendors WHERE $1 = ANY(opportunity_ids) ORDER BY email`,
		opportunityID)
}

func (r vendorRepo) NewsletterEmails(ctx context.Context) ([]string, error) {
	return emails(ctx, r.q, "newsletter emails",
		`SELECT email FROM vendors WHERE subscribed_to_newsletter ORDER BY email`)
}

// emails runs a single-column address query.
func emails(ctx context.Context, q querier, op, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(op, err)
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	return out, nil
}
