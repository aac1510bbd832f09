package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
)

// WorkflowRepository stores workflows as one JSON file per workflow id.
type WorkflowRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewWorkflowRepository creates a workflow repository under the given
// directory.
func NewWorkflowRepository(dir string) *WorkflowRepository {
	return &WorkflowRepository{dir: dir}
}

func (r *WorkflowRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Save writes the workflow to disk, creating the directory on first use.
func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	if err := os.WriteFile(r.path(workflow.ID), data, 0o644); err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) load(id string) (*models.Workflow, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	workflow := &models.Workflow{}
	if err := json.Unmarshal(data, workflow); err != nil {
		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return workflow, nil
}

// GetByIDForUser fetches a workflow scoped to its owner. An existing workflow
// owned by someone else is reported as not found.
func (r *WorkflowRepository) GetByIDForUser(_ context.Context, id, userID string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, err := r.load(id)
	if err != nil {
		return nil, err
	}

	if workflow.UserID != userID {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

// UpdateStatus records the deployment outcome on the workflow.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, engineWorkflowID string) error {
	r.mu.Lock()
	workflow, err := r.load(id)
	r.mu.Unlock()

	if err != nil {
		return err
	}

	workflow.Status = status
	workflow.EngineWorkflowID = engineWorkflowID

	return r.Save(ctx, workflow)
}

// CountByStatus counts workflows currently in the given status.
func (r *WorkflowRepository) CountByStatus(_ context.Context, status models.WorkflowStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, persistence.NewStoreError("CountByStatus", string(status), err)
	}

	count := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		workflow, err := r.load(id)
		if err != nil {
			continue
		}

		if workflow.Status == status {
			count++
		}
	}

	return count, nil
}
