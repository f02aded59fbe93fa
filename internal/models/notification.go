package models

// Message is one prepared email. When a notification fans out, each Message
// carries exactly one address in To.
type Message struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	From        string       `json:"from"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"htmlBody"`
	TextBody    string       `json:"textBody,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is an inline file sent with a Message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}
