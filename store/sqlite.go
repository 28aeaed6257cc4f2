// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nexusflow/engine"
	engerrors "github.com/nexusflow/engine/pkg/errors"
)

// SQLiteStore is an engine.StateStore backed by a pure-Go SQLite driver
// (modernc.org/sqlite — already a teacher dependency). The
// WorkflowState is stored JSON-serialized in full, alongside indexed
// columns for Status, SubStatus and CorrelationId so a host can query
// without deserializing every row.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at dsn
// and ensures the workflow_state table exists.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS workflow_state (
	instance_id    TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	sub_status     TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	document       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_state_status ON workflow_state(status, sub_status);
CREATE INDEX IF NOT EXISTS idx_workflow_state_correlation ON workflow_state(correlation_id);
`
	_, err := s.db.Exec(ddl)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts the JSON-serialized WorkflowState along with its indexed
// columns.
func (s *SQLiteStore) Save(ctx context.Context, state *engine.WorkflowState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal workflow state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO workflow_state (instance_id, status, sub_status, correlation_id, document)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(instance_id) DO UPDATE SET
	status = excluded.status,
	sub_status = excluded.sub_status,
	correlation_id = excluded.correlation_id,
	document = excluded.document
`, state.InstanceID, string(state.Status), string(state.SubStatus), state.CorrelationID, string(doc))
	if err != nil {
		return fmt.Errorf("store: save workflow state: %w", err)
	}
	return nil
}

// Load retrieves and deserializes a persisted WorkflowState by InstanceId.
func (s *SQLiteStore) Load(ctx context.Context, instanceID string) (*engine.WorkflowState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM workflow_state WHERE instance_id = ?`, instanceID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &engerrors.NotFoundError{Resource: "workflow instance", ID: instanceID}
	}
	if err != nil {
		return nil, fmt.Errorf("store: load workflow state: %w", err)
	}
	var state engine.WorkflowState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, fmt.Errorf("store: unmarshal workflow state: %w", err)
	}
	return &state, nil
}

// Delete removes a persisted state.
func (s *SQLiteStore) Delete(ctx context.Context, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflow_state WHERE instance_id = ?`, instanceID)
	return err
}

// ListByStatus returns instance IDs matching a given status/sub-status
// pair without deserializing the stored documents.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status, subStatus string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id FROM workflow_state WHERE status = ? AND sub_status = ?`, status, subStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
