package repository

import "context"

// schema is applied idempotently at startup. Steps live as JSONB on the
// workflow row; tasks reference the workflow and step by id.
const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflows (
	id         UUID PRIMARY KEY,
	tenant_id  UUID NOT NULL REFERENCES tenants(id),
	name       TEXT NOT NULL,
	description TEXT,
	steps      JSONB NOT NULL,
	status     TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_tenant ON workflows (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS tasks (
	id           UUID PRIMARY KEY,
	tenant_id    UUID NOT NULL REFERENCES tenants(id),
	workflow_id  UUID NOT NULL REFERENCES workflows(id),
	step_id      UUID NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT,
	assignee_id  TEXT NOT NULL,
	status       TEXT NOT NULL,
	due_date     TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks (tenant_id, assignee_id);
CREATE INDEX IF NOT EXISTS idx_tasks_step ON tasks (tenant_id, workflow_id, step_id);
`

// Migrate creates the service tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}
