package models

import "time"

// QuestionState is derived from the answer fields.
type QuestionState string

const (
	QuestionUnanswered QuestionState = "unanswered"
	QuestionAnswered   QuestionState = "answered"
	QuestionEdited     QuestionState = "edited"
)

// Question is a vendor question on one opportunity. AskedByID is cleared
// when the vendor is removed; the question survives.
type Question struct {
	ID            int64     `json:"id"`
	OpportunityID int64     `json:"opportunityId"`
	QuestionText  string    `json:"questionText"`
	AskedByID     *int64    `json:"askedById,omitempty"`
	AskedAt       time.Time `json:"askedAt"`

	// Loaded reference, filled by the store.
	AskedBy *Vendor `json:"askedBy,omitempty"`

	AnswerText   string     `json:"answerText,omitempty"`
	AnsweredByID *int64     `json:"answeredById,omitempty"`
	AnsweredAt   *time.Time `json:"answeredAt,omitempty"`
	Edited       bool       `json:"edited"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
}

func (q *Question) State() QuestionState {
	switch {
	case q.AnsweredAt == nil:
		return QuestionUnanswered
	case q.Edited:
		return QuestionEdited
	default:
		return QuestionAnswered
	}
}

func (q *Question) IsAnswered() bool {
	return q.AnsweredAt != nil
}

// AskerEmail returns the asking vendor's address, or "" once the vendor is gone.
func (q *Question) AskerEmail() string {
	if q.AskedBy == nil {
		return ""
	}
	return q.AskedBy.Email
}
