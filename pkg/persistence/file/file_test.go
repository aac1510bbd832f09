package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
)

func testWorkflow(id, userID string) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		UserID: userID,
		Name:   "Test Workflow",
		Status: models.WorkflowStatusDraft,
		Definition: &models.WorkflowDefinition{
			Name: "Test Workflow",
			Nodes: []*models.Node{
				{ID: "trigger", Name: "Start", Type: "manual-trigger", TypeVersion: 1, Position: []float64{240, 300}},
			},
			Connections: map[string][][]models.Connection{},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := testWorkflow("wf-1", "user-1")
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	fetched, err := store.WorkflowRepository().GetByIDForUser(t.Context(), "wf-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, fetched.Name)
	assert.Len(t, fetched.Definition.Nodes, 1)
}

func TestWorkflowRepository_OwnershipIsNotLeaked(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), testWorkflow("wf-1", "user-1")))

	_, err := store.WorkflowRepository().GetByIDForUser(t.Context(), "wf-1", "user-2")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, missingErr := store.WorkflowRepository().GetByIDForUser(t.Context(), "absent", "user-2")
	require.Error(t, missingErr)

	// A foreign workflow and a missing workflow are indistinguishable.
	assert.Equal(t, missingErr, err)
}

func TestWorkflowRepository_UpdateStatus(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), testWorkflow("wf-1", "user-1")))
	require.NoError(t, store.WorkflowRepository().UpdateStatus(t.Context(), "wf-1", models.WorkflowStatusDeployed, "engine-1"))

	fetched, err := store.WorkflowRepository().GetByIDForUser(t.Context(), "wf-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDeployed, fetched.Status)
	assert.Equal(t, "engine-1", fetched.EngineWorkflowID)
}

func TestWorkflowRepository_CountByStatus(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), testWorkflow("wf-1", "user-1")))
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), testWorkflow("wf-2", "user-1")))
	require.NoError(t, store.WorkflowRepository().UpdateStatus(t.Context(), "wf-2", models.WorkflowStatusDeployed, "engine-2"))

	drafts, err := store.WorkflowRepository().CountByStatus(t.Context(), models.WorkflowStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, 1, drafts)

	deployed, err := store.WorkflowRepository().CountByStatus(t.Context(), models.WorkflowStatusDeployed)
	require.NoError(t, err)
	assert.Equal(t, 1, deployed)
}

func TestDeploymentRepository_SaveAndGet(t *testing.T) {
	store := NewPersistence(t.TempDir())

	record := &models.DeploymentRecord{
		ID:         "dep-1",
		UserID:     "user-1",
		WorkflowID: "wf-1",
		Status:     models.DeploymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.DeploymentRepository().Save(t.Context(), record))

	fetched, err := store.DeploymentRepository().GetByID(t.Context(), "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusPending, fetched.Status)

	_, err = store.DeploymentRepository().GetByID(t.Context(), "absent")
	require.Error(t, err)
	assert.True(t, persistence.IsDeploymentNotFound(err))
}

func TestDeploymentRepository_LatestDeployed(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.DeploymentRepository()

	base := time.Now().UTC().Add(-time.Hour)

	records := []*models.DeploymentRecord{
		{ID: "dep-1", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, CreatedAt: base},
		{ID: "dep-2", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, CreatedAt: base.Add(10 * time.Minute)},
		{ID: "dep-3", WorkflowID: "wf-1", Status: models.DeploymentStatusFailed, CreatedAt: base.Add(20 * time.Minute)},
		{ID: "dep-4", WorkflowID: "wf-2", Status: models.DeploymentStatusDeployed, CreatedAt: base.Add(30 * time.Minute)},
	}

	for _, record := range records {
		require.NoError(t, repo.Save(t.Context(), record))
	}

	latest, err := repo.LatestDeployed(t.Context(), "wf-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "dep-2", latest.ID)

	none, err := repo.LatestDeployed(t.Context(), "wf-3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeploymentRepository_CountSince(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.DeploymentRepository()

	now := time.Now().UTC()

	require.NoError(t, repo.Save(t.Context(), &models.DeploymentRecord{
		ID: "old", WorkflowID: "wf-1", Status: models.DeploymentStatusDeployed, CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.Save(t.Context(), &models.DeploymentRecord{
		ID: "recent", WorkflowID: "wf-1", Status: models.DeploymentStatusFailed, CreatedAt: now,
	}))

	count, err := repo.CountSince(t.Context(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := NewPersistence(t.TempDir())

	assert.NoError(t, store.HealthCheck(t.Context()))
	assert.NoError(t, store.Close(t.Context()))
}
