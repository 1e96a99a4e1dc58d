package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fieldstack/orchestrator/pkg/config"
	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/orchestrator"
)

// newTestClient spins up a disposable Postgres (or reuses CI's, via
// CI_DATABASE_URL) and applies every migration, mirroring the
// reference's test/database.NewTestClient.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	if url := os.Getenv("CI_DATABASE_URL"); url != "" {
		client, err := NewClient(ctx, parseTestDSN(t, url))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orchestrator_test"),
		tcpostgres.WithUsername("orchestrator"),
		tcpostgres.WithPassword("orchestrator"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, Config{
		Host:     host,
		Port:     port.Int(),
		User:     "orchestrator",
		Password: "orchestrator",
		Database: "orchestrator_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// parseTestDSN is a placeholder for environments that hand us a fully
// formed connection string instead of discrete parameters; CI wires
// CI_DATABASE_URL through individual Config fields via its own env vars
// in practice, so this just documents the seam.
func parseTestDSN(t *testing.T, _ string) Config {
	t.Helper()
	return Config{
		Host:     os.Getenv("CI_DATABASE_HOST"),
		Port:     5432,
		User:     os.Getenv("CI_DATABASE_USER"),
		Password: os.Getenv("CI_DATABASE_PASSWORD"),
		Database: os.Getenv("CI_DATABASE_NAME"),
		SSLMode:  "disable",
	}
}

func testJob(jobID, tenantID string, class model.Class, state model.JobState) *model.Job {
	return &model.Job{
		JobID:    jobID,
		TenantID: tenantID,
		UserID:   "user-1",
		Class:    class,
		DomainID: "domain-1",
		Input:    model.JobInput{Text: "a sighting was reported near the river"},
		PlanSnapshot: &model.ExecutionPlan{
			PlaybookID: "pb-1",
			GraphID:    "graph-1",
			Class:      class,
			Levels: []model.Level{
				{{AgentID: "agent-a"}},
			},
		},
		State:     state,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestJobStoreInsertAndGetRoundTrips(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	job := testJob("job-1", "tenant-a", model.ClassIngest, model.JobQueued)
	require.NoError(t, store.Insert(ctx, job))

	got, err := store.Get(ctx, "tenant-a", "job-1")
	require.NoError(t, err)
	require.Equal(t, job.JobID, got.JobID)
	require.Equal(t, job.Class, got.Class)
	require.Equal(t, job.State, got.State)
	require.Equal(t, job.Input.Text, got.Input.Text)
	require.Equal(t, job.PlanSnapshot.PlaybookID, got.PlanSnapshot.PlaybookID)
}

func TestJobStoreGetWrongTenantFails(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testJob("job-2", "tenant-a", model.ClassIngest, model.JobQueued)))

	_, err := store.Get(ctx, "tenant-b", "job-2")
	require.Error(t, err)
	require.Equal(t, model.CodeBadReference, err.(*model.Error).Code)
}

func TestJobStoreClaimNextSkipsLockedAndOrdersByStartedAt(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	older := testJob("job-older", "tenant-a", model.ClassQuery, model.JobQueued)
	older.StartedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	newer := testJob("job-newer", "tenant-a", model.ClassQuery, model.JobQueued)
	newer.StartedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Insert(ctx, newer))
	require.NoError(t, store.Insert(ctx, older))

	claimed, err := store.ClaimNext(ctx, "pod-1")
	require.NoError(t, err)
	require.Equal(t, "job-older", claimed.JobID)
	require.Equal(t, model.JobRunning, claimed.State)
	require.Equal(t, "pod-1", claimed.PodID)

	claimed2, err := store.ClaimNext(ctx, "pod-2")
	require.NoError(t, err)
	require.Equal(t, "job-newer", claimed2.JobID)

	_, err = store.ClaimNext(ctx, "pod-1")
	require.ErrorIs(t, err, orchestrator.ErrNoJobsAvailable)
}

func TestJobStoreUpdateStateSetsFinishedAtOnlyWhenTerminal(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testJob("job-3", "tenant-a", model.ClassIngest, model.JobQueued)))
	require.NoError(t, store.UpdateState(ctx, "job-3", model.JobRunning, "", ""))

	running, err := store.Get(ctx, "tenant-a", "job-3")
	require.NoError(t, err)
	require.True(t, running.FinishedAt.IsZero())

	require.NoError(t, store.UpdateState(ctx, "job-3", model.JobFailed, model.CodeInternal, "boom"))
	failed, err := store.Get(ctx, "tenant-a", "job-3")
	require.NoError(t, err)
	require.False(t, failed.FinishedAt.IsZero())
	require.Equal(t, model.CodeInternal, failed.FailureCode)
	require.Equal(t, "boom", failed.FailureMsg)
}

func TestJobStoreHeartbeatOnlyAffectsRunningJobs(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testJob("job-4", "tenant-a", model.ClassIngest, model.JobQueued)))
	require.Error(t, store.Heartbeat(ctx, "job-4"))

	require.NoError(t, store.UpdateState(ctx, "job-4", model.JobRunning, "", ""))
	require.NoError(t, store.Heartbeat(ctx, "job-4"))
}

func TestJobStoreFindStaleRunningAndRunningOnPod(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	job := testJob("job-5", "tenant-a", model.ClassQuery, model.JobQueued)
	require.NoError(t, store.Insert(ctx, job))
	claimed, err := store.ClaimNext(ctx, "pod-stale")
	require.NoError(t, err)
	require.Equal(t, "job-5", claimed.JobID)

	stale, err := store.FindStaleRunning(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "job-5", stale[0].JobID)

	onPod, err := store.FindRunningOnPod(ctx, "pod-stale")
	require.NoError(t, err)
	require.Len(t, onPod, 1)

	onOtherPod, err := store.FindRunningOnPod(ctx, "pod-other")
	require.NoError(t, err)
	require.Empty(t, onOtherPod)
}

func TestJobStoreCancelRequestIsIdempotentAndVisible(t *testing.T) {
	client := newTestClient(t)
	store := NewJobStore(client)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testJob("job-6", "tenant-a", model.ClassIngest, model.JobQueued)))

	requested, err := store.IsCancelRequested(ctx, "job-6")
	require.NoError(t, err)
	require.False(t, requested)

	require.NoError(t, store.RequestCancel(ctx, "job-6"))
	require.NoError(t, store.RequestCancel(ctx, "job-6"))

	requested, err = store.IsCancelRequested(ctx, "job-6")
	require.NoError(t, err)
	require.True(t, requested)
}

func TestInvocationStoreSaveUpsertsAndListsInLevelOrder(t *testing.T) {
	client := newTestClient(t)
	jobs := NewJobStore(client)
	invocations := NewInvocationStore(client)
	ctx := context.Background()

	require.NoError(t, jobs.Insert(ctx, testJob("job-7", "tenant-a", model.ClassQuery, model.JobRunning)))

	inv := &model.AgentInvocation{
		JobID:     "job-7",
		AgentID:   "agent-b",
		Level:     1,
		InputView: "rendered prompt",
		Output:    map[string]any{"insight": "seen near the bridge"},
		Status:    model.InvocationRunning,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, invocations.Save(ctx, inv))

	inv.Status = model.InvocationOK
	inv.FinishedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, invocations.Save(ctx, inv))

	other := &model.AgentInvocation{
		JobID:   "job-7",
		AgentID: "agent-a",
		Level:   0,
		Output:  map[string]any{"insight": "first seen yesterday"},
		Status:  model.InvocationOK,
	}
	require.NoError(t, invocations.Save(ctx, other))

	list, err := invocations.ListByJob(ctx, "job-7")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "agent-a", list[0].AgentID)
	require.Equal(t, "agent-b", list[1].AgentID)
	require.Equal(t, model.InvocationOK, list[1].Status)
	require.Equal(t, "seen near the bridge", list[1].Output["insight"])
	require.False(t, list[1].FinishedAt.IsZero())
}

func TestArtifactStoreSaveUpsertsAndGetRoundTripsQueryShape(t *testing.T) {
	client := newTestClient(t)
	jobs := NewJobStore(client)
	artifacts := NewArtifactStore(client)
	ctx := context.Background()

	require.NoError(t, jobs.Insert(ctx, testJob("job-8", "tenant-a", model.ClassQuery, model.JobRunning)))

	artifact := &model.ResultArtifact{
		JobID: "job-8",
		Bullets: []model.Bullet{
			{Interrogative: model.What, Text: "a sighting near the bridge", AgentID: "agent-a"},
			{Interrogative: model.Where, Text: "no data", AgentID: "agent-b"},
		},
		Summary: "one confirmed sighting",
		Visualization: &model.VisualizationSpec{
			Bounds:   [4]float64{-1, -1, 1, 1},
			Features: []map[string]any{{"type": "Feature"}},
		},
		AgentStatuses: map[string]model.InvocationStatus{
			"agent-a": model.InvocationOK,
			"agent-b": model.InvocationTimeout,
		},
	}
	require.NoError(t, artifacts.Save(ctx, artifact))

	artifact.Summary = "revised summary"
	require.NoError(t, artifacts.Save(ctx, artifact))

	got, err := artifacts.Get(ctx, "job-8")
	require.NoError(t, err)
	require.Equal(t, "revised summary", got.Summary)
	require.Len(t, got.Bullets, 2)
	require.Equal(t, model.Where, got.Bullets[1].Interrogative)
	require.NotNil(t, got.Visualization)
	require.Equal(t, [4]float64{-1, -1, 1, 1}, got.Visualization.Bounds)
	require.Equal(t, model.InvocationTimeout, got.AgentStatuses["agent-b"])
}

func TestArtifactStoreGetMissingReturnsBadReference(t *testing.T) {
	client := newTestClient(t)
	artifacts := NewArtifactStore(client)

	_, err := artifacts.Get(context.Background(), "no-such-job")
	require.Error(t, err)
	require.Equal(t, model.CodeBadReference, err.(*model.Error).Code)
}

func TestBackupStoreSaveBackupAppendsRows(t *testing.T) {
	client := newTestClient(t)
	backups := NewBackupStore(client)
	ctx := context.Background()

	b := &config.Backup{
		Component: "agent",
		ID:        "agent-a",
		Version:   1,
		Digest:    "deadbeef",
		Payload:   []byte(`{"agent_id":"agent-a"}`),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, backups.SaveBackup(ctx, b))

	b.Version = 2
	b.Digest = "feedface"
	require.NoError(t, backups.SaveBackup(ctx, b))

	var count int
	require.NoError(t, client.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM config_backups WHERE component = $1 AND record_id = $2`,
		"agent", "agent-a").Scan(&count))
	require.Equal(t, 2, count)
}
