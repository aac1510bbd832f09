package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"deployment_records", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("clixen_test"),
			postgres.WithUsername("clixen"),
			postgres.WithPassword("clixen"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testWorkflow(userID string) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   "Order Sync",
		Status: models.WorkflowStatusDraft,
		Definition: &models.WorkflowDefinition{
			Name: "Order Sync",
			Nodes: []*models.Node{
				{
					ID:       "trigger-1",
					Name:     "Every Morning",
					Type:     "schedule-trigger",
					Position: []float64{240, 300},
					Parameters: map[string]any{
						"cron": "0 8 * * *",
					},
				},
				{
					ID:       "http-1",
					Name:     "Fetch Orders",
					Type:     "http-call",
					Position: []float64{460, 300},
					Parameters: map[string]any{
						"url":    "https://api.example.com/orders",
						"method": "GET",
					},
				},
			},
			Connections: map[string][][]models.Connection{
				"trigger-1": {{{Node: "http-1", Index: 0}}},
			},
			Tags: []string{"sales"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflows')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflows table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'deployment_records')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "deployment_records table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestWorkflowRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("user-1")

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := p.WorkflowRepository().GetByIDForUser(ctx, workflow.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, workflow.ID, retrieved.ID)
	assert.Equal(t, workflow.Name, retrieved.Name)
	assert.Equal(t, models.WorkflowStatusDraft, retrieved.Status)
	require.NotNil(t, retrieved.Definition)
	assert.Len(t, retrieved.Definition.Nodes, 2)
	assert.Equal(t, "https://api.example.com/orders", retrieved.Definition.NodeByID("http-1").Parameters["url"])
	assert.Equal(t, 1, retrieved.Definition.ConnectionCount())
	assert.Equal(t, []string{"sales"}, retrieved.Definition.Tags)
}

func TestWorkflowRepository_OwnershipNotLeaked(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("user-1")

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)

	// A foreign owner and a missing id must be indistinguishable.
	_, foreignErr := p.WorkflowRepository().GetByIDForUser(ctx, workflow.ID, "user-2")
	require.Error(t, foreignErr)
	assert.True(t, persistence.IsWorkflowNotFound(foreignErr))

	_, missingErr := p.WorkflowRepository().GetByIDForUser(ctx, uuid.NewString(), "user-1")
	require.Error(t, missingErr)
	assert.True(t, persistence.IsWorkflowNotFound(missingErr))
}

func TestWorkflowRepository_UpdateStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := testWorkflow("user-1")

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)

	err = p.WorkflowRepository().UpdateStatus(ctx, workflow.ID, models.WorkflowStatusDeployed, "engine-42")
	require.NoError(t, err)

	retrieved, err := p.WorkflowRepository().GetByIDForUser(ctx, workflow.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDeployed, retrieved.Status)
	assert.Equal(t, "engine-42", retrieved.EngineWorkflowID)

	err = p.WorkflowRepository().UpdateStatus(ctx, uuid.NewString(), models.WorkflowStatusFailed, "")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_CountByStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	for range 3 {
		err := p.WorkflowRepository().Save(ctx, testWorkflow("user-1"))
		require.NoError(t, err)
	}

	deployed := testWorkflow("user-2")
	deployed.Status = models.WorkflowStatusDeployed

	err := p.WorkflowRepository().Save(ctx, deployed)
	require.NoError(t, err)

	count, err := p.WorkflowRepository().CountByStatus(ctx, models.WorkflowStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = p.WorkflowRepository().CountByStatus(ctx, models.WorkflowStatusDeployed)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeploymentRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	completedAt := time.Now().UTC()
	record := &models.DeploymentRecord{
		ID:           uuid.NewString(),
		UserID:       "user-1",
		WorkflowID:   "wf-1",
		Status:       models.DeploymentStatusFailed,
		ErrorLayer:   models.LayerBusiness,
		Errors:       []models.ValidationError{{Code: "TOO_MANY_NODES", Message: "workflow has too many nodes", Severity: models.SeverityHigh}},
		ErrorMessage: "validation failed at business layer",
		TestMode:     true,
		CreatedAt:    time.Now().UTC().Add(-time.Minute),
		CompletedAt:  &completedAt,
	}

	err := p.DeploymentRepository().Save(ctx, record)
	require.NoError(t, err)

	retrieved, err := p.DeploymentRepository().GetByID(ctx, record.ID)
	require.NoError(t, err)

	assert.Equal(t, record.ID, retrieved.ID)
	assert.Equal(t, models.DeploymentStatusFailed, retrieved.Status)
	assert.Equal(t, models.LayerBusiness, retrieved.ErrorLayer)
	require.Len(t, retrieved.Errors, 1)
	assert.Equal(t, "TOO_MANY_NODES", retrieved.Errors[0].Code)
	assert.True(t, retrieved.TestMode)
	require.NotNil(t, retrieved.CompletedAt)

	_, err = p.DeploymentRepository().GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsDeploymentNotFound(err))
}

func TestDeploymentRepository_LatestDeployed(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	base := time.Now().UTC().Add(-time.Hour)

	records := []*models.DeploymentRecord{
		{ID: "dep-old", UserID: "user-1", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, EngineWorkflowID: "engine-old", CreatedAt: base},
		{ID: "dep-new", UserID: "user-1", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, EngineWorkflowID: "engine-new", CreatedAt: base.Add(30 * time.Minute)},
		{ID: "dep-failed", UserID: "user-1", WorkflowID: "wf-1", Status: models.DeploymentStatusFailed, CreatedAt: base.Add(45 * time.Minute)},
		{ID: "dep-other", UserID: "user-1", WorkflowID: "wf-2", Status: models.DeploymentStatusDeployed, EngineWorkflowID: "engine-other", CreatedAt: base.Add(50 * time.Minute)},
	}

	for _, record := range records {
		err := p.DeploymentRepository().Save(ctx, record)
		require.NoError(t, err)
	}

	latest, err := p.DeploymentRepository().LatestDeployed(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "dep-new", latest.ID)
	assert.Equal(t, "engine-new", latest.EngineWorkflowID)

	none, err := p.DeploymentRepository().LatestDeployed(ctx, "wf-unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeploymentRepository_Upsert(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	record := &models.DeploymentRecord{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		WorkflowID: "wf-1",
		Status:     models.DeploymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	err := p.DeploymentRepository().Save(ctx, record)
	require.NoError(t, err)

	completedAt := time.Now().UTC()
	record.Status = models.DeploymentStatusDeployed
	record.EngineWorkflowID = "engine-1"
	record.DeploymentURL = "http://engine.test/workflow/engine-1"
	record.CompletedAt = &completedAt

	err = p.DeploymentRepository().Save(ctx, record)
	require.NoError(t, err)

	retrieved, err := p.DeploymentRepository().GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusDeployed, retrieved.Status)
	assert.Equal(t, "engine-1", retrieved.EngineWorkflowID)
	assert.Equal(t, "http://engine.test/workflow/engine-1", retrieved.DeploymentURL)
	require.NotNil(t, retrieved.CompletedAt)
}

func TestDeploymentRepository_CountSince(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	now := time.Now().UTC()

	records := []*models.DeploymentRecord{
		{ID: "dep-1", UserID: "user-1", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "dep-2", UserID: "user-1", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "dep-3", UserID: "user-1", WorkflowID: "wf-2", Status: models.DeploymentStatusFailed, CreatedAt: now.Add(-1 * time.Hour)},
	}

	for _, record := range records {
		err := p.DeploymentRepository().Save(ctx, record)
		require.NoError(t, err)
	}

	count, err := p.DeploymentRepository().CountSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
