package postgresql

// Records are stored as JSONB documents; the columns next to them exist for filtering and ordering.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL CHECK (status IN ('pending', 'active', 'completed', 'failed')),
				owner VARCHAR(255) NOT NULL DEFAULT '',
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE events (
				id VARCHAR(64) PRIMARY KEY,
				event_type VARCHAR(255) NOT NULL,
				processing_status VARCHAR(32) NOT NULL,
				document JSONB NOT NULL,
				received_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_events_type ON events(event_type);
			CREATE INDEX idx_events_processing_status ON events(processing_status);
			CREATE INDEX idx_events_received_at ON events(received_at);
		`,
		2: `
			CREATE TABLE sync_operations (
				id VARCHAR(64) PRIMARY KEY,
				sync_type VARCHAR(64) NOT NULL,
				status VARCHAR(32) NOT NULL,
				workflow_id VARCHAR(64) NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_sync_operations_status ON sync_operations(status);

			CREATE TABLE webhooks (
				id VARCHAR(64) PRIMARY KEY,
				status VARCHAR(32) NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
