package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestLog is one persisted API request record.
type RequestLog struct {
	RequestID   uuid.UUID         `json:"request_id"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	ClientIP    string            `json:"client_ip"`
	Status      int               `json:"response_status"`
	DurationMS  float64           `json:"response_time_ms"`
	UserAgent   string            `json:"user_agent,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// InsertRequestLog records one API request.
func (db *DB) InsertRequestLog(ctx context.Context, rl RequestLog) error {
	var paramsJSON []byte
	if len(rl.QueryParams) > 0 {
		var err error
		paramsJSON, err = json.Marshal(rl.QueryParams)
		if err != nil {
			return fmt.Errorf("failed to marshal query params: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO request_logs (request_id, method, path, query_params, client_ip,
		                           status, duration_ms, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rl.RequestID, rl.Method, rl.Path, paramsJSON, rl.ClientIP,
		rl.Status, rl.DurationMS, rl.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

// ListRequestLogs retrieves recent request logs, newest first.
func (db *DB) ListRequestLogs(ctx context.Context, skip, limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := db.pool.Query(ctx,
		`SELECT request_id, method, path, query_params, client_ip, status, duration_ms,
		        user_agent, created_at
		 FROM request_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	defer rows.Close()

	var logs []RequestLog
	for rows.Next() {
		var rl RequestLog
		var paramsJSON []byte
		if err := rows.Scan(&rl.RequestID, &rl.Method, &rl.Path, &paramsJSON, &rl.ClientIP,
			&rl.Status, &rl.DurationMS, &rl.UserAgent, &rl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		if paramsJSON != nil {
			_ = json.Unmarshal(paramsJSON, &rl.QueryParams)
		}
		logs = append(logs, rl)
	}
	return logs, rows.Err()
}
