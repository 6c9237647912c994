package models

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryRetrying   DeliveryStatus = "retrying"
	DeliveryProcessed  DeliveryStatus = "processed"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// Terminal reports whether no further attempt may ever run for this status.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryProcessed || s == DeliveryFailed || s == DeliveryCancelled
}

// DeliveryEvent groups all attempts for one (endpoint, fired event) pair.
// Payload is the canonical body serialized once at dispatch time; retries
// replay these exact bytes.
type DeliveryEvent struct {
	ID           string          `json:"id"`
	EndpointID   string          `json:"endpoint_id"`
	OrgID        string          `json:"organization_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       DeliveryStatus  `json:"status"`
	AttemptCount int             `json:"attempt_count"`
	NextRetryAt  *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// DeliveryAttempt is one HTTP try, written with its complete outcome once
// the try finishes.
type DeliveryAttempt struct {
	ID              string    `json:"id"`
	DeliveryEventID string    `json:"delivery_event_id"`
	EndpointID      string    `json:"endpoint_id"`
	AttemptNumber   int       `json:"attempt_number"`
	HTTPStatus      int       `json:"http_status"`
	ResponseBody    string    `json:"response_body,omitempty"`
	ResponseHeaders string    `json:"response_headers,omitempty"`
	ResponseTimeMs  int64     `json:"response_time_ms"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	DeliveredAt     time.Time `json:"delivered_at"`
}

// WebhookPayload is the canonical wire body posted to endpoints.
type WebhookPayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	WebhookID string          `json:"webhook_id"`
	Timestamp string          `json:"timestamp"`
}
