package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"spritegen/internal/infra"
	"spritegen/internal/pipeline"
	"spritegen/internal/sqlinline"
)

// RunRepositoryPG stores per-asset run results in the asset_runs table.
type RunRepositoryPG struct {
	db infra.SQLExecutor
}

// NewRunRepository creates a run ledger backed by PostgreSQL.
func NewRunRepository(db infra.SQLExecutor) *RunRepositoryPG {
	return &RunRepositoryPG{db: db}
}

// EnsureSchema creates the ledger table when missing.
func (r *RunRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureAssetRunsTable); err != nil {
		return fmt.Errorf("repo: ensure asset_runs: %w", err)
	}
	return nil
}

// RecordResult upserts one asset result of a run.
func (r *RunRepositoryPG) RecordResult(ctx context.Context, runID uuid.UUID, res pipeline.AssetResult) error {
	outputs := res.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("repo: encode outputs: %w", err)
	}
	outcome := "succeeded"
	errText := ""
	if !res.Succeeded() {
		outcome = "failed"
		errText = res.Err.Error()
	}
	_, err = r.db.Exec(ctx, sqlinline.QInsertAssetRun,
		runID.String(),
		res.Seq,
		res.Name,
		res.JobID,
		res.SourceURL,
		outcome,
		string(res.Stage),
		string(res.Kind),
		errText,
		outputsJSON,
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("repo: insert asset run %s/%d: %w", runID, res.Seq, err)
	}
	return nil
}

// FailedAsset is a failed row of a stored run.
type FailedAsset struct {
	Name      string
	ErrorKind string
	ErrorText string
}

// Failures lists the failed assets of a run in catalog order.
func (r *RunRepositoryPG) Failures(ctx context.Context, runID uuid.UUID) ([]FailedAsset, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectLastFailures, runID.String())
	if err != nil {
		return nil, fmt.Errorf("repo: select failures: %w", err)
	}
	defer rows.Close()

	var out []FailedAsset
	for rows.Next() {
		var f FailedAsset
		if err := rows.Scan(&f.Name, &f.ErrorKind, &f.ErrorText); err != nil {
			return nil, fmt.Errorf("repo: scan failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: iterate failures: %w", err)
	}
	return out, nil
}
