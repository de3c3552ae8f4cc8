package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/migration"
	"github.com/tordrt/schemasync/internal/schema"
)

func newTestStore(t *testing.T) *db.SQLiteStore {
	t.Helper()

	client, err := db.NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "reconcile.db"))
	if err != nil {
		t.Fatalf("Failed to connect to SQLite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return db.NewSQLiteStore(client, db.SQLiteTuning{JournalMode: "WAL", ForeignKeys: true})
}

func widgetsSpec(t *testing.T) *schema.SchemaSpec {
	t.Helper()

	spec, err := schema.NewSchema("widgets", 1, func(s *schema.SchemaBuilder) {
		s.Table("widgets", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Integer, schema.PrimaryKey)
			tb.Column("name", schema.Text, schema.NotNull)
			tb.Index("name")
		})
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	return spec
}

func mustExec(t *testing.T, store Store, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if err := store.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}
}

func TestInitializeEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	result, err := engine.Initialize(ctx, spec)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if result.Status != Clean {
		t.Errorf("Status = %s, want %s (issues %v)", result.Status, Clean, result.Issues)
	}
	if len(result.Repairs) != 0 {
		t.Errorf("Repairs = %v, want none: apply should create everything", result.Repairs)
	}
	if result.RunID == "" || result.Fingerprint != spec.Fingerprint(schema.SQLite) {
		t.Errorf("Result identity not populated: %+v", result)
	}

	exists, err := engine.IntrospectTable(ctx, "widgets")
	if err != nil || !exists {
		t.Fatalf("IntrospectTable(widgets) = %v, %v", exists, err)
	}

	indexes, err := engine.IntrospectIndexes(ctx, "widgets")
	if err != nil {
		t.Fatalf("IntrospectIndexes() error = %v", err)
	}
	if !containsIndex(indexes, "idx_widgets_name") {
		t.Errorf("IntrospectIndexes() = %v, want idx_widgets_name", indexes)
	}
}

func TestDiffAndRepairDrift(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	mustExec(t, store,
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY)",
		"INSERT INTO widgets (id) VALUES (1), (2)",
	)

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	wantIssues := []Discrepancy{
		{Kind: MissingColumn, Table: "widgets", Column: "name"},
		{Kind: MissingIndex, Table: "widgets", Index: "idx_widgets_name"},
	}
	if !reflect.DeepEqual(issues, wantIssues) {
		t.Errorf("Diff() = %v, want %v", issues, wantIssues)
	}

	repairs, err := engine.Repair(ctx, spec)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if len(repairs) != 2 {
		t.Fatalf("Repair() = %v, want 2 actions", repairs)
	}
	if repairs[0].Kind != AddedColumn || repairs[0].Table != "widgets" || repairs[0].Column != "name" {
		t.Errorf("repairs[0] = %v, want AddedColumn(widgets.name)", repairs[0])
	}
	if repairs[1].Kind != AddedIndex || repairs[1].Index != "idx_widgets_name" {
		t.Errorf("repairs[1] = %v, want AddedIndex(idx_widgets_name)", repairs[1])
	}

	issues, err = engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() after repair error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Diff() after repair = %v, want none", issues)
	}
}

func TestTypeMismatchIsNotRepaired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	mustExec(t, store,
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY, name INTEGER NOT NULL)",
		"CREATE INDEX idx_widgets_name ON widgets(name)",
	)

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != TypeMismatch || issues[0].Column != "name" {
		t.Fatalf("Diff() = %v, want [TypeMismatch(widgets.name)]", issues)
	}
	if issues[0].Expected != "TEXT" || issues[0].Actual != "INTEGER" {
		t.Errorf("TypeMismatch expected/actual = %s/%s", issues[0].Expected, issues[0].Actual)
	}
	if issues[0].Repairable() {
		t.Error("TypeMismatch reported as repairable")
	}

	repairs, err := engine.Repair(ctx, spec)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if len(repairs) != 0 {
		t.Errorf("Repair() = %v, want none", repairs)
	}

	result, err := engine.Initialize(ctx, spec)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if result.Status != PartiallyRepaired {
		t.Errorf("Status = %s, want %s", result.Status, PartiallyRepaired)
	}
	if len(result.Residual) != 1 || result.Residual[0].Kind != TypeMismatch {
		t.Errorf("Residual = %v", result.Residual)
	}
}

func TestConstraintMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	mustExec(t, store,
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE INDEX idx_widgets_name ON widgets(name)",
	)

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != ConstraintMismatch {
		t.Fatalf("Diff() = %v, want [ConstraintMismatch(widgets.name)]", issues)
	}
	if issues[0].Expected != "NOT NULL" || issues[0].Actual != "NULL" {
		t.Errorf("expected/actual = %s/%s", issues[0].Expected, issues[0].Actual)
	}
}

func TestRepairCreatesTableWithIndexes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	// Table dropped out of band after an earlier apply
	if err := engine.ApplySchema(ctx, spec); err != nil {
		t.Fatalf("ApplySchema() error = %v", err)
	}
	mustExec(t, store, "DROP TABLE widgets")

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != MissingTable {
		t.Fatalf("Diff() = %v, want only MissingTable (no column/index detail)", issues)
	}

	repairs, err := engine.Repair(ctx, spec)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	kinds := make([]RepairKind, len(repairs))
	for i, r := range repairs {
		kinds[i] = r.Kind
	}
	if !reflect.DeepEqual(kinds, []RepairKind{CreatedTable, AddedIndex}) {
		t.Errorf("Repair() kinds = %v, want [CreatedTable AddedIndex]", kinds)
	}

	issues, err = engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Diff() after repair = %v, want none", issues)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	// scores exists live without ratio; only repair can add it
	spec2, err := schema.NewSchema("widgets", 2, func(s *schema.SchemaBuilder) {
		s.AddTable(spec.Tables()[0])
		s.Table("scores", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Integer, schema.PrimaryKey, schema.AutoIncrement)
			tb.Column("points", schema.Integer, schema.NotNull, schema.Default(schema.IntLiteral(0)))
			tb.Column("ratio", schema.Real, schema.NotNull)
		})
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	mustExec(t, store, "CREATE TABLE scores (id INTEGER PRIMARY KEY AUTOINCREMENT, points INTEGER NOT NULL DEFAULT 0)")

	first, err := engine.Initialize(ctx, spec2)
	if err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	if first.Status != Repaired {
		t.Errorf("first Status = %s, want %s (issues %v, residual %v)", first.Status, Repaired, first.Issues, first.Residual)
	}

	second, err := engine.Initialize(ctx, spec2)
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if second.Status != Clean || len(second.Issues) != 0 {
		t.Errorf("second Status = %s with issues %v, want clean", second.Status, second.Issues)
	}
}

func TestSupersetTolerance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	mustExec(t, store,
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL, color TEXT, weight REAL)",
		"CREATE INDEX idx_widgets_name ON widgets(name)",
		"CREATE INDEX idx_widgets_color ON widgets(color)",
		"CREATE TABLE audit_log (id INTEGER PRIMARY KEY, entry TEXT)",
	)

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Diff() = %v, want none for undeclared extras", issues)
	}

	extra, err := engine.UndeclaredTables(ctx, spec)
	if err != nil {
		t.Fatalf("UndeclaredTables() error = %v", err)
	}
	if !reflect.DeepEqual(extra, []string{"audit_log"}) {
		t.Errorf("UndeclaredTables() = %v, want [audit_log]", extra)
	}
}

func TestRepairIsAdditiveOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	mustExec(t, store, "CREATE TABLE widgets (id TEXT PRIMARY KEY, extra BLOB)")

	repairs, err := engine.Repair(ctx, spec)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	for _, r := range repairs {
		upper := strings.ToUpper(r.Statement)
		if strings.Contains(upper, "DROP") || strings.Contains(upper, "RENAME") {
			t.Errorf("Repair() executed destructive statement %q", r.Statement)
		}
		if r.Kind != CreatedTable && r.Kind != AddedColumn && r.Kind != AddedIndex {
			t.Errorf("unexpected repair kind %s", r.Kind)
		}
	}

	columns, err := engine.IntrospectColumns(ctx, "widgets")
	if err != nil {
		t.Fatalf("IntrospectColumns() error = %v", err)
	}
	if columns[0].Name != "id" || columns[0].Type != "TEXT" {
		t.Errorf("existing column was altered: %+v", columns[0])
	}

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != TypeMismatch || issues[0].Column != "id" {
		t.Errorf("Diff() = %v, want the id TypeMismatch to persist", issues)
	}
}

type failingStore struct {
	Store
	failOn string
}

func (s *failingStore) Exec(ctx context.Context, stmt string) error {
	if strings.Contains(stmt, s.failOn) {
		return errors.New("disk I/O error")
	}
	return s.Store.Exec(ctx, stmt)
}

func TestApplyFailed(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: newTestStore(t), failOn: "CREATE INDEX"}
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	_, err := engine.Initialize(ctx, spec)
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if !errors.Is(err, ErrApplyFailed) {
		t.Errorf("error %v does not wrap ErrApplyFailed", err)
	}

	var applyErr *ApplyFailedError
	if !errors.As(err, &applyErr) {
		t.Fatalf("error %v is not *ApplyFailedError", err)
	}
	if applyErr.Statement != "CREATE INDEX IF NOT EXISTS idx_widgets_name ON widgets(name)" {
		t.Errorf("Statement = %q", applyErr.Statement)
	}

	// No rollback: the table created before the failure is still there
	exists, err := engine.IntrospectTable(ctx, "widgets")
	if err != nil || !exists {
		t.Errorf("IntrospectTable(widgets) = %v, %v", exists, err)
	}
}

func TestApplyMigration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	if _, err := engine.Initialize(ctx, spec); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	m, err := migration.New(1, 2, func(b *migration.Builder) {
		b.AddColumn("widgets", "color", schema.Text, schema.NotNull)
		b.AddIndex("widgets", false, "color")
		b.RenameColumn("widgets", "name", "title")
	})
	if err != nil {
		t.Fatalf("migration.New() error = %v", err)
	}

	stmts, err := engine.ApplyMigration(ctx, m)
	if err != nil {
		t.Fatalf("ApplyMigration() error = %v", err)
	}
	if len(stmts) != 3 {
		t.Errorf("ApplyMigration() executed %d statements, want 3", len(stmts))
	}

	columns, err := engine.IntrospectColumns(ctx, "widgets")
	if err != nil {
		t.Fatalf("IntrospectColumns() error = %v", err)
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	if !reflect.DeepEqual(names, []string{"id", "title", "color"}) {
		t.Errorf("columns after migration = %v", names)
	}
}

func TestApplyMigrationUnknownOperation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)

	m, err := migration.New(1, 2, func(b *migration.Builder) {
		b.CreateTable("things", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Integer, schema.PrimaryKey)
		})
		b.Append(migration.Operation{Kind: "truncate_table", Table: "things"})
	})
	if err != nil {
		t.Fatalf("migration.New() error = %v", err)
	}

	stmts, err := engine.ApplyMigration(ctx, m)
	if !errors.Is(err, migration.ErrUnknownOperation) {
		t.Fatalf("ApplyMigration() error = %v, want ErrUnknownOperation", err)
	}
	if len(stmts) != 0 {
		t.Errorf("ApplyMigration() returned statements %q", stmts)
	}

	// Fail fast: the create_table before the unknown operation never ran
	exists, err := engine.IntrospectTable(ctx, "things")
	if err != nil || exists {
		t.Errorf("IntrospectTable(things) = %v, %v, want false", exists, err)
	}
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)
	spec := widgetsSpec(t)

	tables, err := engine.Describe(ctx, spec)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(tables) != 1 || tables[0].Exists {
		t.Fatalf("Describe() before apply = %+v", tables)
	}

	if err := engine.ApplySchema(ctx, spec); err != nil {
		t.Fatalf("ApplySchema() error = %v", err)
	}
	tables, err = engine.Describe(ctx, spec)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if !tables[0].Exists || len(tables[0].Columns) != 2 || tables[0].ColumnByName("name") == nil {
		t.Errorf("Describe() after apply = %+v", tables[0])
	}
}

func containsIndex(indexes []schema.LiveIndex, name string) bool {
	for _, idx := range indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

func TestMixedCaseIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)

	spec, err := schema.NewSchema("widgets", 1, func(s *schema.SchemaBuilder) {
		s.Table("Widgets", func(tb *schema.TableBuilder) {
			tb.Column("ID", schema.Integer, schema.PrimaryKey)
			tb.Column("Name", schema.Text, schema.NotNull)
			tb.Index("Name")
		})
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}

	mustExec(t, store,
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE INDEX idx_widgets_name ON widgets(name)",
	)

	for i := 0; i < 2; i++ {
		result, err := engine.Initialize(ctx, spec)
		if err != nil {
			t.Fatalf("Initialize() run %d error = %v", i+1, err)
		}
		if result.Status != Clean || len(result.Repairs) != 0 {
			t.Errorf("run %d Status = %s, repairs %v, issues %v; want clean with no repairs",
				i+1, result.Status, result.Repairs, result.Issues)
		}
	}

	extra, err := engine.UndeclaredTables(ctx, spec)
	if err != nil {
		t.Fatalf("UndeclaredTables() error = %v", err)
	}
	if len(extra) != 0 {
		t.Errorf("UndeclaredTables() = %v, want none", extra)
	}
}

func TestCaseOnlyDifferenceIsNotDrift(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)

	spec, err := schema.NewSchema("widgets", 1, func(s *schema.SchemaBuilder) {
		s.Table("widgets", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Integer, schema.PrimaryKey)
			tb.Column("name", schema.Text)
		})
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}

	mustExec(t, store, "CREATE TABLE Widgets (ID INTEGER PRIMARY KEY, NAME TEXT)")

	issues, err := engine.Diff(ctx, spec)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Diff() = %v, want none", issues)
	}
}

func TestRepairSkipsColumnsSQLiteCannotAdd(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine := NewEngine(store)

	spec, err := schema.NewSchema("arena", 1, func(s *schema.SchemaBuilder) {
		s.Table("players", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Integer, schema.PrimaryKey)
			tb.Column("handle", schema.Text, schema.NotNull, schema.Unique)
			tb.Column("created_at", schema.Datetime, schema.Default(schema.Expr("CURRENT_TIMESTAMP")))
			tb.Column("nick", schema.Text, schema.Unique)
			tb.Column("note", schema.Text)
		})
	})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}

	mustExec(t, store,
		"CREATE TABLE players (id INTEGER PRIMARY KEY)",
		"INSERT INTO players (id) VALUES (1), (2)",
	)

	result, err := engine.Initialize(ctx, spec)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if result.Status != PartiallyRepaired {
		t.Fatalf("Status = %s, want %s", result.Status, PartiallyRepaired)
	}

	wantRepairs := []string{
		"added_column(players.nick)",
		"added_index(uq_players_nick)",
		"added_column(players.note)",
	}
	var gotRepairs []string
	for _, r := range result.Repairs {
		gotRepairs = append(gotRepairs, r.String())
	}
	if !reflect.DeepEqual(gotRepairs, wantRepairs) {
		t.Errorf("Repairs = %v, want %v", gotRepairs, wantRepairs)
	}

	if len(result.Residual) != 2 {
		t.Fatalf("Residual = %v, want handle and created_at", result.Residual)
	}
	for i, column := range []string{"handle", "created_at"} {
		issue := result.Residual[i]
		if issue.Kind != MissingColumn || issue.Column != column {
			t.Errorf("Residual[%d] = %v, want missing_column(players.%s)", i, issue, column)
		}
		if issue.Repairable() {
			t.Errorf("Residual[%d] reported as repairable", i)
		}
	}

	mustExec(t, store, "UPDATE players SET nick = 'ace' WHERE id = 1")
	if err := store.Exec(ctx, "UPDATE players SET nick = 'ace' WHERE id = 2"); err == nil {
		t.Error("duplicate nick accepted, want unique index to reject it")
	}
}
