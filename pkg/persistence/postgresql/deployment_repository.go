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

// DeploymentRepository stores the append-only deployment audit trail in
// PostgreSQL.
type DeploymentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDeploymentRepository creates a deployment repository over the given
// database.
func NewDeploymentRepository(db *sql.DB, logger *slog.Logger) *DeploymentRepository {
	return &DeploymentRepository{
		db:     db,
		logger: logger.With("module", "postgresql_deployments"),
	}
}

// Save upserts the record. Records are only ever rewritten by the
// orchestrator's state transitions, never deleted.
func (r *DeploymentRepository) Save(ctx context.Context, record *models.DeploymentRecord) error {
	issues, err := json.Marshal(record.Errors)
	if err != nil {
		return persistence.NewStoreError("Save", record.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO deployment_records
			(id, user_id, workflow_id, status, engine_workflow_id, error_layer, errors,
			 error_message, deployment_url, webhook_url, retry_count, test_mode, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			engine_workflow_id = EXCLUDED.engine_workflow_id,
			error_layer = EXCLUDED.error_layer,
			errors = EXCLUDED.errors,
			error_message = EXCLUDED.error_message,
			deployment_url = EXCLUDED.deployment_url,
			webhook_url = EXCLUDED.webhook_url,
			retry_count = EXCLUDED.retry_count,
			completed_at = EXCLUDED.completed_at
	`, record.ID, record.UserID, record.WorkflowID, record.Status,
		nullable(record.EngineWorkflowID), nullable(string(record.ErrorLayer)), issues,
		nullable(record.ErrorMessage), nullable(record.DeploymentURL), nullable(record.WebhookURL),
		record.RetryCount, record.TestMode, record.CreatedAt, record.CompletedAt)
	if err != nil {
		return persistence.NewStoreError("Save", record.ID, err)
	}

	return nil
}

// GetByID fetches a record by id.
func (r *DeploymentRepository) GetByID(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, workflow_id, status, engine_workflow_id, error_layer, errors,
		       error_message, deployment_url, webhook_url, retry_count, test_mode, created_at, completed_at
		FROM deployment_records
		WHERE id = $1
	`, id)

	return r.scan(row, id)
}

// LatestDeployed returns the most recent deployed record for the workflow, or
// nil when none exists.
func (r *DeploymentRepository) LatestDeployed(ctx context.Context, workflowID string) (*models.DeploymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, workflow_id, status, engine_workflow_id, error_layer, errors,
		       error_message, deployment_url, webhook_url, retry_count, test_mode, created_at, completed_at
		FROM deployment_records
		WHERE workflow_id = $1 AND status = 'deployed'
		ORDER BY created_at DESC
		LIMIT 1
	`, workflowID)

	record, err := r.scan(row, workflowID)
	if persistence.IsDeploymentNotFound(err) {
		return nil, nil
	}

	return record, err
}

// CountSince counts records created at or after the given time.
func (r *DeploymentRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM deployment_records WHERE created_at >= $1", since).Scan(&count)
	if err != nil {
		return 0, persistence.NewStoreError("CountSince", "", err)
	}

	return count, nil
}

func (r *DeploymentRepository) scan(row *sql.Row, key string) (*models.DeploymentRecord, error) {
	record := &models.DeploymentRecord{}

	var (
		engineID, errorLayer, errorMessage sql.NullString
		deploymentURL, webhookURL          sql.NullString
		issues                             []byte
		completedAt                        sql.NullTime
	)

	err := row.Scan(&record.ID, &record.UserID, &record.WorkflowID, &record.Status,
		&engineID, &errorLayer, &issues, &errorMessage, &deploymentURL, &webhookURL,
		&record.RetryCount, &record.TestMode, &record.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrDeploymentNotFound
	}

	if err != nil {
		return nil, persistence.NewStoreError("GetByID", key, err)
	}

	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &record.Errors); err != nil {
			return nil, persistence.NewStoreError("GetByID", key, err)
		}
	}

	record.EngineWorkflowID = engineID.String
	record.ErrorLayer = models.Layer(errorLayer.String)
	record.ErrorMessage = errorMessage.String
	record.DeploymentURL = deploymentURL.String
	record.WebhookURL = webhookURL.String

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}
