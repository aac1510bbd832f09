// Package file provides a file-based persistence implementation. It keeps the
// service runnable without a database and backs the unit tests.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/intelogroup/clixen/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a JSON directory
// tree: <root>/workflows/<id>.json and <root>/deployments/<id>.json.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	deploymentRepo *DeploymentRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   NewWorkflowRepository(filepath.Join(cleanRoot, "workflows")),
		deploymentRepo: NewDeploymentRepository(filepath.Join(cleanRoot, "deployments")),
	}
}

// Close performs any necessary cleanup; nothing is held open for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) DeploymentRepository() persistence.DeploymentRepository {
	return p.deploymentRepo
}
