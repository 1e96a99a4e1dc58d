package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// ArtifactStore is the durable orchestrator.ArtifactStore: one
// ResultArtifact per job, written once at synthesis.
type ArtifactStore struct {
	db *sql.DB
}

// NewArtifactStore constructs an ArtifactStore.
func NewArtifactStore(client *Client) *ArtifactStore {
	return &ArtifactStore{db: client.db}
}

func (s *ArtifactStore) Save(ctx context.Context, artifact *model.ResultArtifact) error {
	fields, err := json.Marshal(artifact.Fields)
	if err != nil {
		return fmt.Errorf("marshal artifact fields: %w", err)
	}
	location, err := json.Marshal(artifact.Location)
	if err != nil {
		return fmt.Errorf("marshal artifact location: %w", err)
	}
	bullets, err := json.Marshal(artifact.Bullets)
	if err != nil {
		return fmt.Errorf("marshal artifact bullets: %w", err)
	}
	visualization, err := json.Marshal(artifact.Visualization)
	if err != nil {
		return fmt.Errorf("marshal artifact visualization: %w", err)
	}
	statuses, err := json.Marshal(artifact.AgentStatuses)
	if err != nil {
		return fmt.Errorf("marshal artifact agent statuses: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO result_artifacts (job_id, fields, location, timestamp, category, bullets, summary, visualization, agent_statuses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			fields = EXCLUDED.fields, location = EXCLUDED.location, timestamp = EXCLUDED.timestamp,
			category = EXCLUDED.category, bullets = EXCLUDED.bullets, summary = EXCLUDED.summary,
			visualization = EXCLUDED.visualization, agent_statuses = EXCLUDED.agent_statuses
	`, artifact.JobID, fields, location, artifact.Timestamp, artifact.Category, bullets,
		artifact.Summary, visualization, statuses)
	if err != nil {
		return fmt.Errorf("save result artifact: %w", err)
	}
	return nil
}

func (s *ArtifactStore) Get(ctx context.Context, jobID string) (*model.ResultArtifact, error) {
	var (
		artifact                                           model.ResultArtifact
		fields, location, bullets, visualization, statuses []byte
		timestamp                                           sql.NullTime
	)
	artifact.JobID = jobID

	err := s.db.QueryRowContext(ctx, `
		SELECT fields, location, timestamp, category, bullets, summary, visualization, agent_statuses
		FROM result_artifacts WHERE job_id = $1
	`, jobID).Scan(&fields, &location, &timestamp, &artifact.Category, &bullets, &artifact.Summary,
		&visualization, &statuses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewError(model.CodeBadReference, "artifact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query result artifact: %w", err)
	}

	if timestamp.Valid {
		artifact.Timestamp = &timestamp.Time
	}
	if err := unmarshalIfPresent(fields, &artifact.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal artifact fields: %w", err)
	}
	if err := unmarshalIfPresent(location, &artifact.Location); err != nil {
		return nil, fmt.Errorf("unmarshal artifact location: %w", err)
	}
	if err := unmarshalIfPresent(bullets, &artifact.Bullets); err != nil {
		return nil, fmt.Errorf("unmarshal artifact bullets: %w", err)
	}
	if len(visualization) > 0 && string(visualization) != "null" {
		var vis model.VisualizationSpec
		if err := json.Unmarshal(visualization, &vis); err != nil {
			return nil, fmt.Errorf("unmarshal artifact visualization: %w", err)
		}
		artifact.Visualization = &vis
	}
	if err := unmarshalIfPresent(statuses, &artifact.AgentStatuses); err != nil {
		return nil, fmt.Errorf("unmarshal artifact agent statuses: %w", err)
	}

	return &artifact, nil
}

func unmarshalIfPresent(raw []byte, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
