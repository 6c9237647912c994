package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/signing"
)

const maxResponseBody = 1024

type SendResult struct {
	StatusCode      int
	ResponseBody    string
	ResponseHeaders string
	LatencyMs       int64
	Error           string
}

type Sender struct {
	client *http.Client
}

func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the canonical payload bytes to the endpoint. The signature is
// computed over exactly these bytes, never a re-serialized structure.
func (s *Sender) Send(ctx context.Context, ep *models.Endpoint, eventID string, payload []byte) *SendResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("failed to create request: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hookline/1.0")
	req.Header.Set("X-Webhook-ID", eventID)
	req.Header.Set(signing.Header, signing.Sign(ep.Secret, payload))
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("request failed: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return &SendResult{
		StatusCode:      resp.StatusCode,
		ResponseBody:    string(body),
		ResponseHeaders: flattenHeaders(resp.Header),
		LatencyMs:       time.Since(start).Milliseconds(),
	}
}

func flattenHeaders(h http.Header) string {
	var sb strings.Builder
	for k, vals := range h {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(vals, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}
