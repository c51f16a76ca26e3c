// ops.go implements the operator-facing commands layered on top of the
// migration executor: info, validate, baseline, and repair.
package engine

import (
	"context"
	"fmt"

	"github.com/oarkflow/migrator/schema"
)

// MigrationInfo returns the full MigrationInfo snapshot without mutating
// the database, backing `cmd/migrator migration:info`. Named distinctly from the
// Engine.Info field (the C2 service itself) to avoid a field/method
// collision.
func (e *Engine) MigrationInfo(ctx context.Context) ([]schema.MigrationInfo, error) {
	if err := e.Info.Refresh(ctx); err != nil {
		return nil, err
	}
	return e.Info.Snapshot(), nil
}

// ValidationError reports one resolved-vs-applied checksum mismatch.
type ValidationError struct {
	Identifier string
	Message    string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Identifier, v.Message)
}

// Validate recomputes checksums for all resolved migrations already
// recorded as applied and reports any mismatch; it never touches schema
// history.
func (e *Engine) Validate(ctx context.Context) error {
	if err := e.Info.Refresh(ctx); err != nil {
		return err
	}
	errs := &schema.MultiError{}
	for _, info := range e.Info.Snapshot() {
		if info.Resolved == nil || info.Applied == nil {
			continue
		}
		if !schema.ChecksumsMatch(info.Resolved.Checksum, info.Applied.Checksum) {
			errs.Add(&ValidationError{
				Identifier: info.Identifier(),
				Message:    "checksum mismatch between resolved migration and schema history",
			})
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Baseline inserts a synthetic AppliedMigration row marking version as the
// baseline without running any script, for adopting this engine onto a
// pre-existing schema. Fails if schema history already has rows.
func (e *Engine) Baseline(ctx context.Context, version schema.MigrationVersion, description string) error {
	if err := e.History.Create(ctx); err != nil {
		return err
	}
	existing, err := e.History.AllAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("engine: cannot baseline, schema history already has %d row(s)", len(existing))
	}
	row := schema.AppliedMigration{
		Version:     version,
		Versioned:   true,
		Description: description,
		Type:        schema.TypeBaseline,
		Script:      "<< baseline >>",
		InstalledBy: e.Configuration.InstalledBy,
		InstalledOn: nowFunc(),
		Success:     true,
	}
	_, err = e.History.AddAppliedMigration(ctx, row)
	return err
}

// Repair removes failed rows from schema history and realigns the stored
// checksum of applied repeatable migrations that no longer match their
// resolved checksum. This is the documented recovery path for
// FAILED_MIGRATION_PRESENT: without it, the next Migrate call would hit
// the same failed row and raise the same error indefinitely.
func (e *Engine) Repair(ctx context.Context) (RepairReport, error) {
	if err := e.Info.Refresh(ctx); err != nil {
		return RepairReport{}, err
	}
	var report RepairReport
	for _, info := range e.Info.Snapshot() {
		if info.State.IsFailure() && info.Applied != nil {
			if err := e.History.RemoveFailedMigration(ctx, info.Applied.InstalledRank); err != nil {
				return report, fmt.Errorf("engine: repairing %s: %w", info.Identifier(), err)
			}
			report.FailedRowsRemoved = append(report.FailedRowsRemoved, info.Identifier())
		}
		if info.Resolved != nil && info.Applied != nil && !info.Resolved.Versioned &&
			!schema.ChecksumsMatch(info.Resolved.Checksum, info.Applied.Checksum) {
			if err := e.History.RealignChecksum(ctx, info.Applied.InstalledRank, info.Resolved.Checksum, info.Resolved.Digest); err != nil {
				return report, fmt.Errorf("engine: realigning %s: %w", info.Identifier(), err)
			}
			report.ChecksumsRealigned = append(report.ChecksumsRealigned, info.Identifier())
		}
	}
	if len(report.FailedRowsRemoved) > 0 || len(report.ChecksumsRealigned) > 0 {
		if err := e.Info.Refresh(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RepairReport describes what a repair pass actually changed in schema
// history; cmd/migrator prints it.
type RepairReport struct {
	FailedRowsRemoved  []string
	ChecksumsRealigned []string
}
