package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// InvocationStore is the durable orchestrator.InvocationStore: one row
// per (job, agent), written as each level finishes.
type InvocationStore struct {
	db *sql.DB
}

// NewInvocationStore constructs an InvocationStore.
func NewInvocationStore(client *Client) *InvocationStore {
	return &InvocationStore{db: client.db}
}

func (s *InvocationStore) Save(ctx context.Context, inv *model.AgentInvocation) error {
	output, err := json.Marshal(inv.Output)
	if err != nil {
		return fmt.Errorf("marshal invocation output: %w", err)
	}

	var finishedAt sql.NullTime
	if !inv.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: inv.FinishedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_invocations (job_id, agent_id, level, input_view, output, status, error_code, error_msg, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id, agent_id) DO UPDATE SET
			level = EXCLUDED.level, input_view = EXCLUDED.input_view, output = EXCLUDED.output,
			status = EXCLUDED.status, error_code = EXCLUDED.error_code, error_msg = EXCLUDED.error_msg,
			started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at
	`, inv.JobID, inv.AgentID, inv.Level, inv.InputView, output, string(inv.Status),
		string(inv.ErrorCode), inv.ErrorMsg, inv.StartedAt, finishedAt)
	if err != nil {
		return fmt.Errorf("save agent invocation: %w", err)
	}
	return nil
}

func (s *InvocationStore) ListByJob(ctx context.Context, jobID string) ([]*model.AgentInvocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, agent_id, level, input_view, output, status, error_code, error_msg, started_at, finished_at
		FROM agent_invocations WHERE job_id = $1 ORDER BY level, agent_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list invocations by job: %w", err)
	}
	defer rows.Close()

	var out []*model.AgentInvocation
	for rows.Next() {
		var (
			inv        model.AgentInvocation
			output     []byte
			status     string
			errorCode  string
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&inv.JobID, &inv.AgentID, &inv.Level, &inv.InputView, &output, &status,
			&errorCode, &inv.ErrorMsg, &inv.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan agent invocation: %w", err)
		}
		inv.Status = model.InvocationStatus(status)
		inv.ErrorCode = model.Code(errorCode)
		if finishedAt.Valid {
			inv.FinishedAt = finishedAt.Time
		}
		if len(output) > 0 {
			if err := json.Unmarshal(output, &inv.Output); err != nil {
				return nil, fmt.Errorf("unmarshal invocation output: %w", err)
			}
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}
