package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driftbyte/hookline/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			event_types TEXT NOT NULL DEFAULT '[]',
			headers TEXT NOT NULL DEFAULT '{}',
			rate_limit INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			active INTEGER NOT NULL DEFAULT 1,
			archived INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_triggered_at DATETIME,
			last_success_at DATETIME,
			last_failure_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_events (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
			org_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_attempts (
			id TEXT PRIMARY KEY,
			delivery_event_id TEXT NOT NULL REFERENCES delivery_events(id) ON DELETE CASCADE,
			endpoint_id TEXT NOT NULL,
			attempt_number INTEGER NOT NULL,
			http_status INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			response_headers TEXT NOT NULL DEFAULT '',
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			delivered_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_org ON endpoints(org_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_endpoint ON delivery_events(endpoint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_due ON delivery_events(status, next_retry_at) WHERE status IN ('pending', 'retrying')`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_event ON delivery_attempts(delivery_event_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Endpoints ---

const endpointColumns = `id, org_id, name, url, secret, event_types, headers, rate_limit, max_retries,
	active, archived, failure_count, last_triggered_at, last_success_at, last_failure_at, created_at, updated_at`

func (s *SQLiteStorage) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	eventTypes, _ := json.Marshal(ep.EventTypes)
	headers, _ := json.Marshal(ep.Headers)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (`+endpointColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.OrgID, ep.Name, ep.URL, ep.Secret, string(eventTypes), string(headers),
		ep.RateLimit, ep.MaxRetries, boolToInt(ep.Active), boolToInt(ep.Archived), ep.FailureCount,
		ep.LastTriggeredAt, ep.LastSuccessAt, ep.LastFailureAt, ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanEndpoint(row interface{ Scan(...interface{}) error }) (*models.Endpoint, error) {
	var ep models.Endpoint
	var eventTypes, headers string
	var active, archived int
	err := row.Scan(&ep.ID, &ep.OrgID, &ep.Name, &ep.URL, &ep.Secret, &eventTypes, &headers,
		&ep.RateLimit, &ep.MaxRetries, &active, &archived, &ep.FailureCount,
		&ep.LastTriggeredAt, &ep.LastSuccessAt, &ep.LastFailureAt, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(eventTypes), &ep.EventTypes)
	json.Unmarshal([]byte(headers), &ep.Headers)
	ep.Active = active == 1
	ep.Archived = archived == 1
	return &ep, nil
}

func (s *SQLiteStorage) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE id = ?`, id)
	ep, err := s.scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ep, err
}

func (s *SQLiteStorage) ListEndpoints(ctx context.Context, orgID string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE org_id = ? AND archived = 0 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

func (s *SQLiteStorage) UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	eventTypes, _ := json.Marshal(ep.EventTypes)
	headers, _ := json.Marshal(ep.Headers)
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET name = ?, url = ?, event_types = ?, headers = ?, rate_limit = ?,
		 max_retries = ?, active = ?, updated_at = ? WHERE id = ?`,
		ep.Name, ep.URL, string(eventTypes), string(headers), ep.RateLimit,
		ep.MaxRetries, boolToInt(ep.Active), time.Now().UTC(), ep.ID,
	)
	return err
}

func (s *SQLiteStorage) SetEndpointActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), time.Now().UTC(), id)
	return err
}

func (s *SQLiteStorage) ArchiveEndpoint(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET archived = 1, active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}

func (s *SQLiteStorage) UpdateEndpointSecret(ctx context.Context, id, secret string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStorage) ListSubscribedEndpoints(ctx context.Context, orgID, eventType string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints
		 WHERE org_id = ? AND active = 1 AND archived = 0 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		if matchesEventType(ep.EventTypes, eventType) {
			endpoints = append(endpoints, *ep)
		}
	}
	return endpoints, rows.Err()
}

func matchesEventType(subscribed []string, eventType string) bool {
	if len(subscribed) == 0 {
		return true // no filter means all events
	}
	for _, sub := range subscribed {
		if sub == eventType || sub == "*" {
			return true
		}
		// wildcard matching: "order.*" matches "order.created"
		if strings.HasSuffix(sub, ".*") {
			prefix := strings.TrimSuffix(sub, ".*")
			if strings.HasPrefix(eventType, prefix+".") {
				return true
			}
		}
	}
	return false
}

func (s *SQLiteStorage) MarkEndpointTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET last_triggered_at = ?, updated_at = ? WHERE id = ?`, at, at, id)
	return err
}

func (s *SQLiteStorage) RecordEndpointSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET failure_count = 0, last_success_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id)
	return err
}

func (s *SQLiteStorage) RecordEndpointFailure(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET failure_count = failure_count + 1, last_failure_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id)
	return err
}

// --- Delivery events ---

const deliveryEventColumns = `id, endpoint_id, org_id, event_type, payload, status, attempt_count, next_retry_at, created_at, updated_at`

func (s *SQLiteStorage) CreateDeliveryEvent(ctx context.Context, d *models.DeliveryEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_events (`+deliveryEventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.EndpointID, d.OrgID, d.EventType, string(d.Payload), d.Status,
		d.AttemptCount, d.NextRetryAt, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanDeliveryEvent(row interface{ Scan(...interface{}) error }) (*models.DeliveryEvent, error) {
	var d models.DeliveryEvent
	var payload string
	err := row.Scan(&d.ID, &d.EndpointID, &d.OrgID, &d.EventType, &payload, &d.Status,
		&d.AttemptCount, &d.NextRetryAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	return &d, nil
}

func (s *SQLiteStorage) GetDeliveryEvent(ctx context.Context, id string) (*models.DeliveryEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryEventColumns+` FROM delivery_events WHERE id = ?`, id)
	d, err := s.scanDeliveryEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStorage) UpdateDeliveryEvent(ctx context.Context, d *models.DeliveryEvent) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE delivery_events SET status = ?, attempt_count = ?, next_retry_at = ?, updated_at = ? WHERE id = ?`,
		d.Status, d.AttemptCount, d.NextRetryAt, time.Now().UTC(), d.ID,
	)
	return err
}

func (s *SQLiteStorage) ListDeliveryEvents(ctx context.Context, endpointID string, f DeliveryFilter) ([]models.DeliveryEvent, error) {
	query := `SELECT ` + deliveryEventColumns + ` FROM delivery_events WHERE endpoint_id = ?`
	args := []interface{}{endpointID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, f.EventType)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DeliveryEvent
	for rows.Next() {
		d, err := s.scanDeliveryEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *d)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) DueDeliveryEvents(ctx context.Context, now time.Time, limit int) ([]models.DeliveryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryEventColumns+` FROM delivery_events
		 WHERE status = 'pending' OR (status = 'retrying' AND next_retry_at <= ?)
		 ORDER BY created_at ASC LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DeliveryEvent
	for rows.Next() {
		d, err := s.scanDeliveryEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *d)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) ClaimDeliveryEvent(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE delivery_events SET status = 'processing', updated_at = ?
		 WHERE id = ? AND (status = 'pending' OR (status = 'retrying' AND next_retry_at <= ?))`,
		now.UTC(), id, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLiteStorage) ReleaseStuckDeliveryEvents(ctx context.Context, before time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE delivery_events SET status = 'retrying', next_retry_at = ?, updated_at = ?
		 WHERE status = 'processing' AND updated_at < ?`,
		now, now, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Attempts ---

func (s *SQLiteStorage) CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (id, delivery_event_id, endpoint_id, attempt_number, http_status,
		 response_body, response_headers, response_time_ms, success, error, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DeliveryEventID, a.EndpointID, a.AttemptNumber, a.HTTPStatus,
		a.ResponseBody, a.ResponseHeaders, a.ResponseTimeMs, boolToInt(a.Success), a.Error, a.DeliveredAt,
	)
	return err
}

func (s *SQLiteStorage) ListAttempts(ctx context.Context, deliveryEventID string) ([]models.DeliveryAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, delivery_event_id, endpoint_id, attempt_number, http_status, response_body,
		 response_headers, response_time_ms, success, error, delivered_at
		 FROM delivery_attempts WHERE delivery_event_id = ? ORDER BY attempt_number`, deliveryEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var success int
		if err := rows.Scan(&a.ID, &a.DeliveryEventID, &a.EndpointID, &a.AttemptNumber, &a.HTTPStatus,
			&a.ResponseBody, &a.ResponseHeaders, &a.ResponseTimeMs, &success, &a.Error, &a.DeliveredAt); err != nil {
			return nil, err
		}
		a.Success = success == 1
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// --- Stats ---

func (s *SQLiteStorage) GetStats(ctx context.Context, orgID string) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(status = 'processed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(status IN ('pending', 'processing', 'retrying')), 0)
		 FROM delivery_events WHERE org_id = ?`, orgID,
	).Scan(&stats.TotalEvents, &stats.ProcessedCount, &stats.FailedCount, &stats.CancelledCount, &stats.PendingCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active = 1 AND archived = 0), 0) FROM endpoints WHERE org_id = ?`, orgID,
	).Scan(&stats.TotalEndpoints, &stats.ActiveEndpoints)
	if err != nil {
		return nil, err
	}

	terminal := stats.ProcessedCount + stats.FailedCount
	if terminal > 0 {
		stats.SuccessRate = float64(stats.ProcessedCount) / float64(terminal) * 100
	}
	return stats, nil
}

func (s *SQLiteStorage) GetEndpointStats(ctx context.Context, endpointID string) (*EndpointStats, error) {
	stats := &EndpointStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(status = 'processed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(status IN ('pending', 'processing', 'retrying')), 0)
		 FROM delivery_events WHERE endpoint_id = ?`, endpointID,
	).Scan(&stats.ProcessedCount, &stats.FailedCount, &stats.CancelledCount, &stats.PendingCount)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
