package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
)

// WorkflowRepository stores user-owned workflows in PostgreSQL.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a workflow repository over the given database.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger.With("module", "postgresql_workflows"),
	}
}

// Save upserts the workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	definition, err := json.Marshal(workflow.Definition)
	if err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, status, definition, engine_workflow_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			definition = EXCLUDED.definition,
			engine_workflow_id = EXCLUDED.engine_workflow_id,
			updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.UserID, workflow.Name, workflow.Status, definition,
		nullable(workflow.EngineWorkflowID), workflow.CreatedAt, time.Now().UTC())
	if err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	return nil
}

// GetByIDForUser fetches a workflow scoped to its owner. Ownership mismatch
// is indistinguishable from absence.
func (r *WorkflowRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, status, definition, engine_workflow_id, created_at, updated_at
		FROM workflows
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	workflow := &models.Workflow{}

	var (
		definition []byte
		engineID   sql.NullString
	)

	err := row.Scan(&workflow.ID, &workflow.UserID, &workflow.Name, &workflow.Status,
		&definition, &engineID, &workflow.CreatedAt, &workflow.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByIDForUser", id, err)
	}

	if len(definition) > 0 {
		workflow.Definition = &models.WorkflowDefinition{}
		if err := json.Unmarshal(definition, workflow.Definition); err != nil {
			return nil, persistence.NewStoreError("GetByIDForUser", id, err)
		}
	}

	workflow.EngineWorkflowID = engineID.String

	return workflow, nil
}

// UpdateStatus records the deployment outcome on the workflow.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus, engineWorkflowID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = $2, engine_workflow_id = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, nullable(engineWorkflowID))
	if err != nil {
		return persistence.NewStoreError("UpdateStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("UpdateStatus", id, err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

// CountByStatus counts workflows currently in the given status.
func (r *WorkflowRepository) CountByStatus(ctx context.Context, status models.WorkflowStatus) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflows WHERE status = $1", status).Scan(&count)
	if err != nil {
		return 0, persistence.NewStoreError("CountByStatus", string(status), err)
	}

	return count, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
