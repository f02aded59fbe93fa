package notifydue

import "time"

// Output is written back to the timer-started sweep process.
type Output struct {
	Notified int       `json:"dueNotified"`
	SweptAt  time.Time `json:"dueSweptAt"`
	Skipped  bool      `json:"dueSkipped,omitempty"`
}
