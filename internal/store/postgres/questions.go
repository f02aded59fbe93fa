package postgres

import (
	"context"
	"database/sql"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/models"
)

const questionSelect = `
	SELECT q.id, q.opportunity_id, q.question_text, q.asked_by_id, q.asked_at,
		q.answer_text, q.answered_by_id, q.answered_at, q.edited, q.edited_at,
		v.email, v.business_name
	FROM questions q
	LEFT JOIN vendors v ON v.id = q.asked_by_id`

type questionRepo struct {
	q querier
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q                     models.Question
		askedBy, answeredBy   sql.NullInt64
		answeredAt, editedAt  sql.NullTime
		vendorEmail, business sql.NullString
	)
	err := row.Scan(
		&q.ID, &q.OpportunityID, &q.QuestionText, &askedBy, &q.AskedAt,
		&q.AnswerText, &answeredBy, &answeredAt, &q.Edited, &editedAt,
		&vendorEmail, &business,
	)
	if err != nil {
		return nil, err
	}
	q.AskedByID = idOrNil(askedBy)
	q.AnsweredByID = idOrNil(answeredBy)
	q.AnsweredAt = timeOrNil(answeredAt)
	q.EditedAt = timeOrNil(editedAt)
	if q.AskedByID != nil && vendorEmail.Valid {
		q.AskedBy = &models.Vendor{ID: *q.AskedByID, Email: vendorEmail.String, BusinessName: business.String}
	}
	return &q, nil
}

func (r questionRepo) Get(ctx context.Context, id int64) (*models.Question, error) {
	return r.get(ctx, id, "")
}

func (r questionRepo) GetForUpdate(ctx context.Context, id int64) (*models.Question, error) {
	return r.get(ctx, id, ` FOR UPDATE OF q`)
}

func (r questionRepo) get(ctx context.Context, id int64, lock string) (*models.Question, error) {
	q, err := scanQuestion(r.q.QueryRowContext(ctx, questionSelect+` WHERE q.id = $1`+lock, id))
	if err != nil {
		return nil, queryError("get question", "question", id, err)
	}
	return q, nil
}

func (r questionRepo) Create(ctx context.Context, q *models.Question) error {
	var askedAt interface{}
	if !q.AskedAt.IsZero() {
		askedAt = q.AskedAt.UTC()
	}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO questions (opportunity_id, question_text, asked_by_id, asked_at)
		VALUES ($1, $2, $3, COALESCE($4::timestamptz, now()))
		RETURNING id, asked_at`,
		q.OpportunityID, q.QuestionText, nullableID(q.AskedByID), askedAt,
	).Scan(&q.ID, &q.AskedAt)
	if err != nil {
		return queryError("create question", "opportunity", q.OpportunityID, err)
	}
	return nil
}

func (r questionRepo) Save(ctx context.Context, q *models.Question) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE questions SET
			question_text = $2, answer_text = $3, answered_by_id = $4,
			answered_at = $5, edited = $6, edited_at = $7
		WHERE id = $1`,
		q.ID, q.QuestionText, q.AnswerText, nullableID(q.AnsweredByID),
		nullableTime(q.AnsweredAt), q.Edited, nullableTime(q.EditedAt),
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("save question", err)
	}
	return expectRow(res, "question", q.ID)
}

func (r questionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete question", err)
	}
	return expectRow(res, "question", id)
}

func (r questionRepo) ListByOpportunity(ctx context.Context, opportunityID int64, answeredOnly bool) ([]*models.Question, error) {
	query := questionSelect + ` WHERE q.opportunity_id = $1`
	if answeredOnly {
		query += ` AND q.answer_text <> ''`
	}
	query += ` ORDER BY q.id`

	rows, err := r.q.QueryContext(ctx, query, opportunityID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list questions", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan question", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list questions", err)
	}
	return out, nil
}
