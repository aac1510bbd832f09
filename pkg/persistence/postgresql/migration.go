package postgresql

// migrations returns the versioned schema for the deployment store. The
// workflow definition and validation errors are stored as JSONB; query access
// is always by id or status, never by definition content.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'draft',
				definition JSONB,
				engine_workflow_id TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_user ON workflows (user_id);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status);

			CREATE TABLE IF NOT EXISTS deployment_records (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				engine_workflow_id TEXT,
				error_layer TEXT,
				errors JSONB,
				error_message TEXT,
				deployment_url TEXT,
				webhook_url TEXT,
				retry_count INTEGER NOT NULL DEFAULT 0,
				test_mode BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_deployments_workflow
				ON deployment_records (workflow_id, status, created_at DESC);
		`,
	}
}
