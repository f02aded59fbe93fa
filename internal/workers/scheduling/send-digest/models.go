package senddigest

import "time"

type Output struct {
	Opportunities int       `json:"digestOpportunities"`
	Sent          int       `json:"digestSent"`
	Failed        int       `json:"digestFailed"`
	SentAt        time.Time `json:"digestSentAt"`
	Skipped       bool      `json:"digestSkipped,omitempty"`
}
