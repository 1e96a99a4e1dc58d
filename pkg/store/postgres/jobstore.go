package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/orchestrator"
)

// JobStore is the durable orchestrator.JobStore, backing every pod in a
// multi-replica deployment off one Jobs table (adapted from the
// reference's queue.Worker.claimNextSession transaction pattern).
type JobStore struct {
	db *sql.DB
}

// NewJobStore constructs a JobStore.
func NewJobStore(client *Client) *JobStore {
	return &JobStore{db: client.db}
}

func (s *JobStore) Insert(ctx context.Context, job *model.Job) error {
	input, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("marshal job input: %w", err)
	}
	plan, err := json.Marshal(job.PlanSnapshot)
	if err != nil {
		return fmt.Errorf("marshal plan snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, tenant_id, user_id, class, domain_id, input, plan_snapshot, state, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.JobID, job.TenantID, job.UserID, string(job.Class), job.DomainID, input, plan, string(job.State), job.StartedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, tenantID, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, tenant_id, user_id, class, domain_id, input, plan_snapshot, state, pod_id,
		       started_at, finished_at, failure_code, failure_msg
		FROM jobs WHERE job_id = $1 AND tenant_id = $2
	`, jobID, tenantID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewError(model.CodeBadReference, "job not found")
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNext atomically claims the oldest queued job, mirroring the
// reference's `SELECT ... FOR UPDATE SKIP LOCKED` + claim-update inside
// one transaction.
func (s *JobStore) ClaimNext(ctx context.Context, podID string) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT job_id, tenant_id, user_id, class, domain_id, input, plan_snapshot, state, pod_id,
		       started_at, finished_at, failure_code, failure_msg
		FROM jobs
		WHERE state = 'queued'
		ORDER BY started_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("query claimable job: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = 'running', pod_id = $1, started_at = $2, last_heartbeat_at = $2, updated_at = $2
		WHERE job_id = $3
	`, podID, now, job.JobID); err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.State = model.JobRunning
	job.PodID = podID
	job.StartedAt = now
	return job, nil
}

func (s *JobStore) UpdateState(ctx context.Context, jobID string, state model.JobState, failureCode model.Code, failureMsg string) error {
	var finishedAt sql.NullTime
	if state.IsTerminal() {
		finishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = $1, failure_code = $2, failure_msg = $3, finished_at = $4, updated_at = now()
		WHERE job_id = $5
	`, string(state), string(failureCode), failureMsg, finishedAt, jobID)
	if err != nil {
		return fmt.Errorf("update job state: %w", err)
	}
	return checkRowsAffected(res, "job")
}

func (s *JobStore) Heartbeat(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET last_heartbeat_at = now() WHERE job_id = $1 AND state = 'running'
	`, jobID)
	if err != nil {
		return fmt.Errorf("heartbeat job: %w", err)
	}
	return checkRowsAffected(res, "job")
}

func (s *JobStore) CountRunning(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE state = 'running'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return n, nil
}

func (s *JobStore) FindStaleRunning(ctx context.Context, threshold time.Time) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, tenant_id, user_id, class, domain_id, input, plan_snapshot, state, pod_id,
		       started_at, finished_at, failure_code, failure_msg
		FROM jobs
		WHERE state = 'running' AND (last_heartbeat_at IS NULL OR last_heartbeat_at < $1)
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query stale running jobs: %w", err)
	}
	return scanJobs(rows)
}

func (s *JobStore) FindRunningOnPod(ctx context.Context, podID string) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, tenant_id, user_id, class, domain_id, input, plan_snapshot, state, pod_id,
		       started_at, finished_at, failure_code, failure_msg
		FROM jobs WHERE state = 'running' AND pod_id = $1
	`, podID)
	if err != nil {
		return nil, fmt.Errorf("query pod's running jobs: %w", err)
	}
	return scanJobs(rows)
}

func (s *JobStore) RequestCancel(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET cancel_requested = TRUE WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("request job cancel: %w", err)
	}
	return checkRowsAffected(res, "job")
}

func (s *JobStore) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	var requested bool
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE job_id = $1`, jobID).Scan(&requested)
	if errors.Is(err, sql.ErrNoRows) {
		return false, model.NewError(model.CodeBadReference, "job not found")
	}
	if err != nil {
		return false, fmt.Errorf("query cancel-requested flag: %w", err)
	}
	return requested, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job          model.Job
		class, state string
		input, plan  []byte
		finishedAt   sql.NullTime
	)

	if err := row.Scan(&job.JobID, &job.TenantID, &job.UserID, &class, &job.DomainID, &input, &plan,
		&state, &job.PodID, &job.StartedAt, &finishedAt, &job.FailureCode, &job.FailureMsg); err != nil {
		return nil, err
	}

	job.Class = model.Class(class)
	job.State = model.JobState(state)
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	if err := json.Unmarshal(input, &job.Input); err != nil {
		return nil, fmt.Errorf("unmarshal job input: %w", err)
	}
	var plan2 model.ExecutionPlan
	if err := json.Unmarshal(plan, &plan2); err != nil {
		return nil, fmt.Errorf("unmarshal plan snapshot: %w", err)
	}
	job.PlanSnapshot = &plan2

	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func checkRowsAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return model.NewError(model.CodeBadReference, what+" not found")
	}
	return nil
}
