package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tordrt/schemasync/internal/migration"
	"github.com/tordrt/schemasync/internal/schema"
)

// Status is the terminal state of an Initialize run
type Status string

const (
	// Clean means the first diff after apply found nothing
	Clean Status = "clean"
	// Repaired means repair resolved every discrepancy
	Repaired Status = "repaired"
	// PartiallyRepaired means discrepancies remain, usually type or
	// constraint drift that needs a hand-written migration
	PartiallyRepaired Status = "partially_repaired"
)

// Result describes one Initialize run
type Result struct {
	RunID       string
	Schema      string
	Version     int
	Fingerprint string
	Status      Status
	Issues      []Discrepancy  // found by the first diff
	Repairs     []RepairAction // executed by repair
	Residual    []Discrepancy  // still present after repair
}

// Initialize tunes the store, applies spec, diffs, and repairs when needed.
// Only statement failures are returned as errors; residual discrepancies
// are reported in the Result.
func (e *Engine) Initialize(ctx context.Context, spec *schema.SchemaSpec) (*Result, error) {
	result := &Result{
		RunID:       uuid.NewString(),
		Schema:      spec.Name,
		Version:     spec.Version,
		Fingerprint: spec.Fingerprint(e.dialect),
	}
	logger := e.logger.With("run_id", result.RunID, "schema", spec.Name, "dialect", e.dialect.Name())
	logger.Info("reconciliation started", "version", spec.Version, "fingerprint", result.Fingerprint)

	if err := e.store.Tune(ctx); err != nil {
		return nil, fmt.Errorf("failed to tune store: %w", err)
	}

	if err := e.applySchema(ctx, logger, spec); err != nil {
		return nil, err
	}

	issues, err := e.diff(ctx, logger, spec)
	if err != nil {
		return nil, err
	}
	result.Issues = issues

	if len(issues) == 0 {
		result.Status = Clean
		logger.Info("reconciliation finished", "status", string(result.Status))
		return result, nil
	}

	for _, issue := range issues {
		logger.Info("discrepancy found", "discrepancy", issue.String())
	}

	repairs, err := e.repair(ctx, logger, spec)
	result.Repairs = repairs
	if err != nil {
		return nil, err
	}

	residual, err := e.diff(ctx, logger, spec)
	if err != nil {
		return nil, err
	}
	result.Residual = residual

	if len(residual) == 0 {
		result.Status = Repaired
	} else {
		result.Status = PartiallyRepaired
		for _, issue := range residual {
			logger.Warn("unresolved discrepancy", "discrepancy", issue.String())
		}
	}

	logger.Info("reconciliation finished",
		"status", string(result.Status),
		"repairs", len(result.Repairs),
		"residual", len(result.Residual),
	)
	return result, nil
}

// ApplyMigration compiles m and executes its statements in order. Nothing is
// executed if compilation fails; on a statement failure the statements
// before it stay applied. Initialize never calls this.
func (e *Engine) ApplyMigration(ctx context.Context, m *migration.Spec) ([]string, error) {
	stmts, err := m.CompileDDL(e.dialect)
	if err != nil {
		return nil, fmt.Errorf("migration %d->%d: %w", m.From, m.To, err)
	}

	logger := e.logger.With("from", m.From, "to", m.To)
	if m.IsDestructive() {
		logger.Warn("applying destructive migration")
	}

	for i, stmt := range stmts {
		if err := e.exec(ctx, logger, stmt); err != nil {
			return stmts[:i], err
		}
	}
	logger.Info("migration applied", "statements", len(stmts))
	return stmts, nil
}
