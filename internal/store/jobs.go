package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobscraper/internal/model"
)

// UpsertJobByFingerprint inserts or refreshes one canonical job record.
// New records get first_seen_at = last_seen_at = now. Existing records keep
// first_seen_at and fingerprint untouched; only the mutable fields and
// last_seen_at advance. Each call is a single atomic statement.
func (db *DB) UpsertJobByFingerprint(ctx context.Context, job model.Job, now time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (fingerprint, title, company, location, description, url,
		                   job_type, is_remote, posted_at, source_id, source_native_key,
		                   first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		     description       = $5,
		     url               = $6,
		     job_type          = $7,
		     is_remote         = $8,
		     posted_at         = COALESCE(jobs.posted_at, $9),
		     source_id         = $10,
		     source_native_key = $11,
		     last_seen_at      = $12`,
		job.Fingerprint, job.Title, job.Company, job.Location, job.Description, job.URL,
		job.JobType, job.IsRemote, job.PostedAt, job.SourceID, job.SourceNativeKey, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.Fingerprint, err)
	}
	return nil
}

// GetJobByFingerprint retrieves one job record, or nil when absent.
func (db *DB) GetJobByFingerprint(ctx context.Context, fingerprint string) (*model.Job, error) {
	var j model.Job
	err := db.pool.QueryRow(ctx,
		`SELECT fingerprint, title, company, location, description, url, job_type,
		        is_remote, posted_at, source_id, source_native_key, first_seen_at, last_seen_at
		 FROM jobs WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&j.Fingerprint, &j.Title, &j.Company, &j.Location, &j.Description, &j.URL,
		&j.JobType, &j.IsRemote, &j.PostedAt, &j.SourceID, &j.SourceNativeKey,
		&j.FirstSeenAt, &j.LastSeenAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

// ListJobsOptions contains filters for listing stored jobs.
type ListJobsOptions struct {
	Search   string // matches title or company, case-insensitive
	SourceID string
	Limit    int
	Offset   int
}

// buildListJobsQuery assembles the filtered SELECT and its arguments.
// Split out so the query construction is testable without a database.
func buildListJobsQuery(opts ListJobsOptions) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if opts.Search != "" {
		conditions = append(conditions,
			fmt.Sprintf("(title ILIKE $%d OR company ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+opts.Search+"%")
		argNum++
	}
	if opts.SourceID != "" {
		conditions = append(conditions, fmt.Sprintf("source_id = $%d", argNum))
		args = append(args, opts.SourceID)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT fingerprint, title, company, location, description, url, job_type,
		        is_remote, posted_at, source_id, source_native_key, first_seen_at, last_seen_at
		 FROM jobs %s
		 ORDER BY last_seen_at DESC
		 LIMIT $%d OFFSET $%d`,
		whereClause, argNum, argNum+1,
	)
	return query, args
}

// ListJobs retrieves stored jobs with optional filters and pagination.
func (db *DB) ListJobs(ctx context.Context, opts ListJobsOptions) ([]model.Job, error) {
	query, args := buildListJobsQuery(opts)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.Fingerprint, &j.Title, &j.Company, &j.Location, &j.Description,
			&j.URL, &j.JobType, &j.IsRemote, &j.PostedAt, &j.SourceID, &j.SourceNativeKey,
			&j.FirstSeenAt, &j.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
