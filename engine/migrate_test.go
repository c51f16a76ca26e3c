package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/engine"
	"github.com/oarkflow/migrator/history"
	"github.com/oarkflow/migrator/schema"
)

// fakeStore is an in-memory history.Store, standing in for the squealx-
// backed one so these tests exercise C4/C5/C6 without a real database.
type fakeStore struct {
	mu      sync.Mutex
	created bool
	rows    []schema.AppliedMigration
	lockMu  sync.Mutex
	depth   int
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) Exists(context.Context) (bool, error) { return s.created, nil }
func (s *fakeStore) Create(context.Context) error {
	s.created = true
	return nil
}
func (s *fakeStore) AddAppliedMigration(_ context.Context, m schema.AppliedMigration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.InstalledRank = int64(len(s.rows) + 1)
	s.rows = append(s.rows, m)
	return m.InstalledRank, nil
}
func (s *fakeStore) AllAppliedMigrations(context.Context) ([]schema.AppliedMigration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.AppliedMigration, len(s.rows))
	copy(out, s.rows)
	return out, nil
}
func (s *fakeStore) RemoveFailedMigration(_ context.Context, installedRank int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.InstalledRank == installedRank {
			if row.Success {
				return fmt.Errorf("fakeStore: installed_rank=%d is not failed", installedRank)
			}
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fakeStore: no row at installed_rank=%d", installedRank)
}
func (s *fakeStore) RealignChecksum(_ context.Context, installedRank int64, checksum *int32, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.InstalledRank == installedRank {
			s.rows[i].Checksum = checksum
			s.rows[i].Digest = digest
			return nil
		}
	}
	return fmt.Errorf("fakeStore: no row at installed_rank=%d", installedRank)
}
func (s *fakeStore) Lock(_ context.Context, fn func() error) error {
	s.lockMu.Lock()
	s.depth++
	s.lockMu.Unlock()
	defer func() {
		s.lockMu.Lock()
		s.depth--
		s.lockMu.Unlock()
	}()
	return fn()
}

var _ history.Store = (*fakeStore)(nil)

// fakeTransactor is a no-op engine.Transactor: it tracks whether a
// transaction is open so tests can assert rollback/commit happened, but
// issues no real statements (the fakeExecutor below never uses Conn()).
type fakeTransactor struct {
	open bool
}

func (t *fakeTransactor) Begin(context.Context) error    { t.open = true; return nil }
func (t *fakeTransactor) Commit(context.Context) error   { t.open = false; return nil }
func (t *fakeTransactor) Rollback(context.Context) error { t.open = false; return nil }
func (t *fakeTransactor) SetAutoCommit(context.Context, bool) error { return nil }
func (t *fakeTransactor) Conn() any                                 { return nil }
func (t *fakeTransactor) RestoreOriginalState(context.Context) error { return nil }
func (t *fakeTransactor) SetSchema(context.Context, string) error    { return nil }

type fakeProvider struct{ tx *fakeTransactor }

func (p *fakeProvider) Acquire(context.Context) (engine.Transactor, error) {
	if p.tx == nil {
		p.tx = &fakeTransactor{}
	}
	return p.tx, nil
}
func (p *fakeProvider) Release(engine.Transactor) {}

// fakeExecutor is a schema.Executor whose behavior (transactional?
// succeeds? on which call?) is fixed by the test.
type fakeExecutor struct {
	transactional bool
	fail          bool
	calls         *int
}

func (e *fakeExecutor) CanExecuteInTransaction() bool { return e.transactional }
func (e *fakeExecutor) Execute(context.Context, any) error {
	if e.calls != nil {
		*e.calls++
	}
	if e.fail {
		return errors.New("boom")
	}
	return nil
}

func versioned(version, description string, transactional bool, calls *int) schema.ResolvedMigration {
	v := schema.MustVersion(version)
	return schema.ResolvedMigration{
		Version:     v,
		Versioned:   true,
		Description: description,
		Type:        schema.TypeSQL,
		Script:      fmt.Sprintf("V%s__%s.sql", version, description),
		Checksum:    intPtr(int32(len(description))),
		Executor:    &fakeExecutor{transactional: transactional, calls: calls},
	}
}

func failingVersioned(version, description string, transactional bool) schema.ResolvedMigration {
	return schema.ResolvedMigration{
		Version:     schema.MustVersion(version),
		Versioned:   true,
		Description: description,
		Type:        schema.TypeSQL,
		Script:      fmt.Sprintf("V%s__%s.sql", version, description),
		Checksum:    intPtr(1),
		Executor:    &fakeExecutor{transactional: transactional, fail: true},
	}
}

func intPtr(v int32) *int32 { return &v }

func postgres(t *testing.T) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(dialect.Postgres)
	if err != nil {
		t.Fatalf("dialect.Get: %v", err)
	}
	return d
}

func TestMigrateHappyPathVersioned(t *testing.T) {
	store := newFakeStore()
	resolver := engine.StaticResolver{
		versioned("1", "a", true, nil),
		versioned("2", "b", true, nil),
	}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(engine.WithGroup(true)), "testdb")

	result, err := eng.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.MigrationsExecuted != 2 {
		t.Fatalf("expected 2 migrations executed, got %d", result.MigrationsExecuted)
	}
	if result.InitialSchemaVersion != "" {
		t.Fatalf("expected empty initial version, got %q", result.InitialSchemaVersion)
	}
	if result.TargetSchemaVersion != "2" {
		t.Fatalf("expected target version 2, got %q", result.TargetSchemaVersion)
	}
	if len(store.rows) != 2 || store.rows[0].InstalledRank != 1 || store.rows[1].InstalledRank != 2 {
		t.Fatalf("unexpected history rows: %+v", store.rows)
	}
	if !store.rows[0].Success || !store.rows[1].Success {
		t.Fatalf("expected both rows to be successful")
	}
}

func TestMigrateOutOfOrder(t *testing.T) {
	store := newFakeStore()
	store.created = true
	store.rows = []schema.AppliedMigration{
		{InstalledRank: 1, Version: schema.MustVersion("1"), Versioned: true, Description: "a", Type: schema.TypeSQL, Script: "V1__a.sql", Success: true},
		{InstalledRank: 2, Version: schema.MustVersion("3"), Versioned: true, Description: "c", Type: schema.TypeSQL, Script: "V3__c.sql", Success: true},
	}
	resolver := engine.StaticResolver{
		versioned("1", "a", true, nil),
		versioned("2", "b", true, nil),
		versioned("3", "c", true, nil),
	}

	disabled := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(engine.WithOutOfOrder(false)), "testdb")
	result, err := disabled.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate (out-of-order disabled): %v", err)
	}
	if result.MigrationsExecuted != 0 {
		t.Fatalf("expected 0 migrations executed with outOfOrder=false, got %d", result.MigrationsExecuted)
	}

	store2 := newFakeStore()
	store2.created = true
	store2.rows = append([]schema.AppliedMigration{}, store.rows...)
	enabled := engine.New(resolver, store2, postgres(t), &fakeProvider{}, engine.NewConfiguration(engine.WithOutOfOrder(true)), "testdb")
	result2, err := enabled.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate (out-of-order enabled): %v", err)
	}
	if result2.MigrationsExecuted != 1 {
		t.Fatalf("expected 1 migration executed with outOfOrder=true, got %d", result2.MigrationsExecuted)
	}
	if len(store2.rows) != 3 {
		t.Fatalf("expected 3 history rows after applying V2, got %d", len(store2.rows))
	}
}

func TestMigrateFailureMidGroupTransactionalRollsBack(t *testing.T) {
	store := newFakeStore()
	var calls int
	resolver := engine.StaticResolver{
		versioned("1", "a", true, &calls),
		failingVersioned("2", "b", true),
		versioned("3", "c", true, &calls),
	}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(engine.WithGroup(true)), "testdb")

	result, err := eng.Migrate(context.Background())
	if err == nil {
		t.Fatalf("expected Migrate to fail")
	}
	if result == nil || result.Success {
		t.Fatalf("expected result.Success=false, got %+v", result)
	}
	if len(store.rows) != 0 {
		t.Fatalf("transactional group must roll back cleanly, got %d history rows", len(store.rows))
	}
	var migErr *schema.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected *schema.MigrationError, got %T", err)
	}
	if migErr.Kind != schema.KindMigrationFailed {
		t.Fatalf("expected KindMigrationFailed, got %s", migErr.Kind)
	}
}

func TestMigrateFailureNonTransactionalRecordsFailedRowThenBlocksNextRun(t *testing.T) {
	store := newFakeStore()
	resolver := engine.StaticResolver{
		failingVersioned("1", "create_index_concurrently", false),
	}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(), "testdb")

	_, err := eng.Migrate(context.Background())
	if err == nil {
		t.Fatalf("expected Migrate to fail")
	}
	if len(store.rows) != 1 || store.rows[0].Success {
		t.Fatalf("expected one failed history row, got %+v", store.rows)
	}

	// A second run against the same history must refuse to proceed.
	eng2 := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(), "testdb")
	_, err2 := eng2.Migrate(context.Background())
	var migErr *schema.MigrationError
	if !errors.As(err2, &migErr) || migErr.Kind != schema.KindFailedMigrationPresent {
		t.Fatalf("expected KindFailedMigrationPresent on second run, got %v", err2)
	}
}

func TestRepairClearsFailedRowAndUnblocksNextRun(t *testing.T) {
	store := newFakeStore()
	resolver := engine.StaticResolver{
		failingVersioned("1", "create_index_concurrently", false),
	}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(), "testdb")
	if _, err := eng.Migrate(context.Background()); err == nil {
		t.Fatalf("expected Migrate to fail")
	}

	report, err := eng.Repair(context.Background())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(report.FailedRowsRemoved) != 1 || report.FailedRowsRemoved[0] != "V1__create_index_concurrently" {
		t.Fatalf("expected the failed row reported removed, got %+v", report)
	}
	if len(store.rows) != 0 {
		t.Fatalf("expected the failed row actually deleted, got %+v", store.rows)
	}

	resolver2 := engine.StaticResolver{
		versioned("1", "create_index_concurrently", false, nil),
	}
	eng2 := engine.New(resolver2, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(), "testdb")
	if _, err := eng2.Migrate(context.Background()); err != nil {
		t.Fatalf("expected Migrate to succeed after repair, got %v", err)
	}
}

func TestRepairRealignsRepeatableChecksum(t *testing.T) {
	store := newFakeStore()
	if _, err := store.AddAppliedMigration(context.Background(), schema.AppliedMigration{
		Description: "refresh_view",
		Type:        schema.TypeSQL,
		Script:      "R__refresh_view.sql",
		Checksum:    intPtr(1),
		Success:     true,
	}); err != nil {
		t.Fatalf("AddAppliedMigration: %v", err)
	}

	resolver := engine.StaticResolver{{
		Versioned:   false,
		Description: "refresh_view",
		Type:        schema.TypeSQL,
		Script:      "R__refresh_view.sql",
		Checksum:    intPtr(2),
		Executor:    &fakeExecutor{},
	}}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(), "testdb")

	report, err := eng.Repair(context.Background())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(report.ChecksumsRealigned) != 1 || report.ChecksumsRealigned[0] != "R__refresh_view" {
		t.Fatalf("expected the stale checksum reported realigned, got %+v", report)
	}
	if store.rows[0].Checksum == nil || *store.rows[0].Checksum != 2 {
		t.Fatalf("expected the stored checksum actually realigned, got %+v", store.rows[0].Checksum)
	}
}

func TestMigrateMixedGroupGuard(t *testing.T) {
	store := newFakeStore()
	resolver := engine.StaticResolver{
		versioned("1", "a", true, nil),
		versioned("2", "b", false, nil),
	}
	eng := engine.New(resolver, store, postgres(t), &fakeProvider{}, engine.NewConfiguration(engine.WithGroup(true), engine.WithMixed(false)), "testdb")

	_, err := eng.Migrate(context.Background())
	if err == nil {
		t.Fatalf("expected MIXED_TRANSACTIONAL_ERROR")
	}
	var migErr *schema.MigrationError
	if !errors.As(err, &migErr) || migErr.Kind != schema.KindMixedTransactional {
		t.Fatalf("expected KindMixedTransactional, got %v", err)
	}
	if migErr.Migration == nil || migErr.Migration.Identifier() != "V2__b" {
		t.Fatalf("expected the error to name V2__b, got %+v", migErr.Migration)
	}
	if len(store.rows) != 0 {
		t.Fatalf("mixed guard must fail before any row is written, got %+v", store.rows)
	}
}
