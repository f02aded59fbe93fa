package sendmail

import (
	"time"

	"beacon/internal/notify/mail"
)

// Input is the variable set a mail process instance carries; the Zeebe
// transport writes it.
type Input = mail.Variables

type Output struct {
	MessageID  string    `json:"mailMessageId"`
	Kind       string    `json:"mailKind"`
	Recipients int       `json:"mailRecipients"`
	Delivered  bool      `json:"mailDelivered"`
	SentAt     time.Time `json:"mailSentAt"`
}
