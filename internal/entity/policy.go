package entity

import "time"

// TimeoutPolicy is the coordinator's current view of one (service, operation) key.
type TimeoutPolicy struct {
	Service      string        `json:"service"`
	Operation    string        `json:"operation"`
	Timeout      time.Duration `json:"timeout"`
	Successes    int           `json:"successes"`
	Failures     int           `json:"failures"`
	LastAdjusted time.Time     `json:"last_adjusted"`
}

// ErrorRecord captures one handled failure for diagnostics.
type ErrorRecord struct {
	CorrelationID string    `json:"correlation_id"`
	Category      string    `json:"category"`
	Severity      string    `json:"severity"`
	Context       string    `json:"context"`
	Recoverable   bool      `json:"recoverable"`
	Action        string    `json:"action"`
	OccurredAt    time.Time `json:"occurred_at"`
}
