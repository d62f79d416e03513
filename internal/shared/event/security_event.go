package event

import "time"

// SecurityEventDestination is the default topic for second-factor changes.
const SecurityEventDestination string = "twofactor.security_event"

type SecurityEventMessage struct {
	AccountID  int64     `json:"account_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
