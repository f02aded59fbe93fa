package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/models"
	"beacon/internal/store"
)

const opportunityColumns = `
	o.id, o.title, o.description, o.department_id,
	o.planned_publish, o.planned_submission_start, o.planned_submission_end,
	o.enable_qa, o.qa_start, o.qa_end,
	o.is_public, o.is_archived, o.published_at, o.publish_notification_sent,
	o.created_by_id, o.contact_id, o.updated_by_id,
	o.category_ids, o.vendor_documents_needed, o.submission_kind, o.submission_data,
	o.created_at, o.updated_at,
	cb.email, cb.first_name, cb.last_name,
	ct.email, ct.first_name, ct.last_name`

const opportunityFrom = `
	FROM opportunities o
	LEFT JOIN users cb ON cb.id = o.created_by_id
	LEFT JOIN users ct ON ct.id = o.contact_id`

type opportunityRepo struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var (
		o                           models.Opportunity
		department, updatedBy       sql.NullInt64
		qaStart, qaEnd, publishedAt sql.NullTime
		categoryIDs, vendorDocs     pq.Int64Array
		kind                        string
		submissionData              []byte
		cbEmail, cbFirst, cbLast    sql.NullString
		ctEmail, ctFirst, ctLast    sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.Title, &o.Description, &department,
		&o.PlannedPublish, &o.SubmissionStart, &o.SubmissionEnd,
		&o.QAEnabled, &qaStart, &qaEnd,
		&o.IsPublic, &o.IsArchived, &publishedAt, &o.PublishNotificationSent,
		&o.CreatedByID, &o.ContactID, &updatedBy,
		&categoryIDs, &vendorDocs, &kind, &submissionData,
		&o.CreatedAt, &o.UpdatedAt,
		&cbEmail, &cbFirst, &cbLast,
		&ctEmail, &ctFirst, &ctLast,
	)
	if err != nil {
		return nil, err
	}
	o.DepartmentID = idOrNil(department)
	o.UpdatedByID = idOrNil(updatedBy)
	o.QAStart = timeOrNil(qaStart)
	o.QAEnd = timeOrNil(qaEnd)
	o.PublishedAt = timeOrNil(publishedAt)
	o.CategoryIDs = models.UniqueIDs(categoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(vendorDocs)
	o.SubmissionKind = models.SubmissionKind(kind)
	if len(submissionData) > 0 {
		if err := json.Unmarshal(submissionData, &o.SubmissionData); err != nil {
			return nil, fmt.Errorf("decode submission_data: %w", err)
		}
		if len(o.SubmissionData) == 0 {
			o.SubmissionData = nil
		}
	}
	if cbEmail.Valid {
		o.CreatedBy = &models.User{ID: o.CreatedByID, Email: cbEmail.String, FirstName: cbFirst.String, LastName: cbLast.String}
	}
	if ctEmail.Valid {
		o.Contact = &models.User{ID: o.ContactID, Email: ctEmail.String, FirstName: ctFirst.String, LastName: ctLast.String}
	}
	return &o, nil
}

func (r opportunityRepo) get(ctx context.Context, id int64, lock string) (*models.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + opportunityFrom + ` WHERE o.id = $1` + lock
	o, err := scanOpportunity(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, queryError("get opportunity", "opportunity", id, err)
	}
	return o, nil
}

func (r opportunityRepo) Get(ctx context.Context, id int64) (*models.Opportunity, error) {
	return r.get(ctx, id, "")
}

func (r opportunityRepo) GetForUpdate(ctx context.Context, id int64) (*models.Opportunity, error) {
	return r.get(ctx, id, ` FOR UPDATE OF o`)
}

func encodeSubmissionData(data map[string]string) ([]byte, error) {
	if data == nil {
		data = map[string]string{}
	}
	return json.Marshal(data)
}

func (r opportunityRepo) Create(ctx context.Context, o *models.Opportunity) error {
	data, err := encodeSubmissionData(o.SubmissionData)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("create opportunity", err)
	}
	o.CategoryIDs = models.UniqueIDs(o.CategoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(o.VendorDocumentsNeeded)

	query := `
		INSERT INTO opportunities (
			title, description, department_id,
			planned_publish, planned_submission_start, planned_submission_end,
			enable_qa, qa_start, qa_end,
			is_public, is_archived, published_at, publish_notification_sent,
			created_by_id, contact_id, updated_by_id,
			category_ids, vendor_documents_needed, submission_kind, submission_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at`

	err = r.q.QueryRowContext(ctx, query,
		o.Title, o.Description, nullableID(o.DepartmentID),
		o.PlannedPublish.UTC(), o.SubmissionStart.UTC(), o.SubmissionEnd.UTC(),
		o.QAEnabled, nullableTime(o.QAStart), nullableTime(o.QAEnd),
		o.IsPublic, o.IsArchived, nullableTime(o.PublishedAt), o.PublishNotificationSent,
		o.CreatedByID, o.ContactID, nullableID(o.UpdatedByID),
		ids(o.CategoryIDs), ids(o.VendorDocumentsNeeded), string(o.SubmissionKind), data,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return queryError("create opportunity", "opportunity", nil, err)
	}
	return nil
}

func (r opportunityRepo) Save(ctx context.Context, o *models.Opportunity) error {
	data, err := encodeSubmissionData(o.SubmissionData)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("save opportunity", err)
	}
	o.CategoryIDs = models.UniqueIDs(o.CategoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(o.VendorDocumentsNeeded)

	query := `
		UPDATE opportunities SET
			title = $2, description = $3, department_id = $4,
			planned_publish = $5, planned_submission_start = $6, planned_submission_end = $7,
			enable_qa = $8, qa_start = $9, qa_end = $10,
			is_public = $11, is_archived = $12, published_at = $13, publish_notification_sent = $14,
			contact_id = $15, updated_by_id = $16,
			category_ids = $17, vendor_documents_needed = $18, submission_kind = $19, submission_data = $20,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = r.q.QueryRowContext(ctx, query,
		o.ID, o.Title, o.Description, nullableID(o.DepartmentID),
		o.PlannedPublish.UTC(), o.SubmissionStart.UTC(), o.SubmissionEnd.UTC(),
		o.QAEnabled, nullableTime(o.QAStart), nullableTime(o.QAEnd),
		o.IsPublic, o.IsArchived, nullableTime(o.PublishedAt), o.PublishNotificationSent,
		o.ContactID, nullableID(o.UpdatedByID),
		ids(o.CategoryIDs), ids(o.VendorDocumentsNeeded), string(o.SubmissionKind), data,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return queryError("save opportunity", "opportunity", o.ID, err)
	}
	return nil
}

// whereClause renders f as SQL predicates numbered from $1.
func whereClause(f store.OpportunityFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.IsPublic != nil {
		add("o.is_public = $%d", *f.IsPublic)
	}
	if f.IsArchived != nil {
		add("o.is_archived = $%d", *f.IsArchived)
	}
	if f.NotificationSent != nil {
		add("o.publish_notification_sent = $%d", *f.NotificationSent)
	}
	if f.PlannedPublishFrom != nil {
		add("o.planned_publish >= $%d", f.PlannedPublishFrom.UTC())
	}
	if f.PlannedPublishBefore != nil {
		add("o.planned_publish < $%d", f.PlannedPublishBefore.UTC())
	}
	if f.SubmissionEndFrom != nil {
		add("o.planned_submission_end >= $%d", f.SubmissionEndFrom.UTC())
	}
	if f.SubmissionEndBefore != nil {
		add("o.planned_submission_end < $%d", f.SubmissionEndBefore.UTC())
	}
	if f.PublishedAfter != nil {
		add("o.published_at > $%d", f.PublishedAfter.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r opportunityRepo) Query(ctx context.Context, f store.OpportunityFilter) ([]*models.Opportunity, error) {
	where, args := whereClause(f)
	query := `SELECT ` + opportunityColumns + opportunityFrom + where + ` ORDER BY o.id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query opportunities", err)
	}
	defer rows.Close()

	var out []*models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan opportunity", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query opportunities", err)
	}
	return out, nil
}

func (r opportunityRepo) Documents(ctx context.Context, opportunityID int64) ([]models.OpportunityDocument, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, opportunity_id, name, href, created_at
		FROM opportunity_documents
		WHERE opportunity_id = $1
		ORDER BY id`, opportunityID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list documents", err)
	}
	defer rows.Close()

	var out []models.OpportunityDocument
	for rows.Next() {
		var d models.OpportunityDocument
		if err := rows.Scan(&d.ID, &d.OpportunityID, &d.Name, &d.Href, &d.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan document", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list documents", err)
	}
	return out, nil
}

func (r opportunityRepo) AddDocument(ctx context.Context, d *models.OpportunityDocument) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO opportunity_documents (opportunity_id, name, href)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		d.OpportunityID, d.Name, d.Href,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return queryError("add document", "opportunity", d.OpportunityID, err)
	}
	return nil
}

func (r opportunityRepo) RemoveDocument(ctx context.Context, opportunityID, documentID int64) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM opportunity_documents WHERE id = $1 AND opportunity_id = $2`,
		documentID, opportunityID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("remove document", err)
	}
	return expectRow(res, "document", documentID)
}
