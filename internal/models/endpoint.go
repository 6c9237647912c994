package models

import "time"

// DefaultMaxRetries is the retry budget applied when an endpoint is
// registered without an explicit one.
const DefaultMaxRetries = 3

type Endpoint struct {
	ID              string            `json:"id"`
	OrgID           string            `json:"organization_id"`
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Secret          string            `json:"-"`
	EventTypes      []string          `json:"event_types"`
	Headers         map[string]string `json:"headers,omitempty"`
	RateLimit       int               `json:"rate_limit,omitempty"`
	MaxRetries      int               `json:"max_retries"`
	Active          bool              `json:"active"`
	Archived        bool              `json:"archived"`
	FailureCount    int               `json:"failure_count"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	LastSuccessAt   *time.Time        `json:"last_success_at,omitempty"`
	LastFailureAt   *time.Time        `json:"last_failure_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Deliverable reports whether the endpoint may receive traffic at all.
func (e *Endpoint) Deliverable() bool {
	return e.Active && !e.Archived
}
