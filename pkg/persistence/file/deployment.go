package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
)

// DeploymentRepository stores deployment records as one JSON file per record.
// Records are never deleted; rollback and failure only rewrite the status.
type DeploymentRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewDeploymentRepository creates a deployment repository under the given
// directory.
func NewDeploymentRepository(dir string) *DeploymentRepository {
	return &DeploymentRepository{dir: dir}
}

func (r *DeploymentRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Save writes the record to disk.
func (r *DeploymentRepository) Save(_ context.Context, record *models.DeploymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return persistence.NewStoreError("Save", record.ID, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return persistence.NewStoreError("Save", record.ID, err)
	}

	if err := os.WriteFile(r.path(record.ID), data, 0o644); err != nil {
		return persistence.NewStoreError("Save", record.ID, err)
	}

	return nil
}

// GetByID fetches a record by its id.
func (r *DeploymentRepository) GetByID(_ context.Context, id string) (*models.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load(id)
}

func (r *DeploymentRepository) load(id string) (*models.DeploymentRecord, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrDeploymentNotFound
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	record := &models.DeploymentRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return record, nil
}

func (r *DeploymentRepository) all() ([]*models.DeploymentRecord, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewStoreError("List", "", err)
	}

	records := make([]*models.DeploymentRecord, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		record, err := r.load(id)
		if err != nil {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

// LatestDeployed returns the most recent deployed record for the workflow, or
// nil when none exists.
func (r *DeploymentRepository) LatestDeployed(_ context.Context, workflowID string) (*models.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.all()
	if err != nil {
		return nil, err
	}

	var latest *models.DeploymentRecord

	for _, record := range records {
		if record.WorkflowID != workflowID || record.Status != models.DeploymentStatusDeployed {
			continue
		}

		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}

	return latest, nil
}

// CountSince counts records created at or after the given time.
func (r *DeploymentRepository) CountSince(_ context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.all()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if !record.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}
