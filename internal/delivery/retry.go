package delivery

import "time"

// BaseDelay anchors the exponential backoff schedule: 30s, 60s, 120s, 240s…
// for failed attempts 1, 2, 3, 4…
const BaseDelay = 30 * time.Second

// BackoffDelay returns the wait after a failed attempt with the given
// 1-based number.
func BackoffDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	return BaseDelay << (attemptNumber - 1)
}

// NextRetryTime returns when the next attempt becomes eligible.
func NextRetryTime(attemptNumber int, now time.Time) *time.Time {
	t := now.UTC().Add(BackoffDelay(attemptNumber))
	return &t
}

// IsSuccess defines delivery success strictly as a 2xx response.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
