package main

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/migration"
	"github.com/tordrt/schemasync/internal/registry"
	"github.com/tordrt/schemasync/internal/schema"
)

const (
	catalogSchema  = "arena"
	catalogVersion = 3
)

// newCatalog registers the arena game-server schema at its current version
// and the migrations that led to it.
func newCatalog() (*registry.Registry, error) {
	reg := registry.New()

	if _, err := reg.DefineSchema(catalogSchema, catalogVersion, arenaTables); err != nil {
		return nil, err
	}

	// v1 had players without region; battle_stats arrived in v2
	if _, err := reg.AddMigration(1, 2, func(b *migration.Builder) {
		b.AddColumn("players", "region", schema.Text, schema.NotNull, schema.Default(schema.TextLiteral("global")))
		b.CreateTable("battle_stats", battleStatsTable)
	}); err != nil {
		return nil, fmt.Errorf("migration 1->2: %w", err)
	}

	if _, err := reg.AddMigration(2, 3, func(b *migration.Builder) {
		b.CreateTable("event_log", eventLogTable)
		b.AddIndex("battle_stats", true, "player_id", "season")
		b.DropIndex("idx_players_handle")
	}); err != nil {
		return nil, fmt.Errorf("migration 2->3: %w", err)
	}

	reg.Seal()
	return reg, nil
}

func arenaTables(s *schema.SchemaBuilder) {
	s.Table("players", func(t *schema.TableBuilder) {
		t.Column("id", schema.Integer, schema.PrimaryKey, schema.AutoIncrement)
		t.Column("handle", schema.Text, schema.NotNull, schema.Unique)
		t.Column("region", schema.Text, schema.NotNull, schema.Default(schema.TextLiteral("global")))
		t.Column("rating", schema.Integer, schema.NotNull, schema.Default(schema.IntLiteral(1200)))
		t.Column("banned", schema.Boolean, schema.NotNull, schema.Default(schema.BoolLiteral(false)))
		t.Column("created_at", schema.Datetime, schema.NotNull, schema.Default(schema.Expr("CURRENT_TIMESTAMP")))
		t.Index("rating")
	})
	s.Table("battle_stats", func(t *schema.TableBuilder) {
		battleStatsTable(t)
		t.UniqueIndex("player_id", "season")
	})
	s.Table("event_log", eventLogTable)
}

func battleStatsTable(t *schema.TableBuilder) {
	t.Column("id", schema.Integer, schema.PrimaryKey, schema.AutoIncrement)
	t.Column("player_id", schema.Integer, schema.NotNull)
	t.Column("season", schema.Integer, schema.NotNull)
	t.Column("wins", schema.Integer, schema.NotNull, schema.Default(schema.IntLiteral(0)))
	t.Column("losses", schema.Integer, schema.NotNull, schema.Default(schema.IntLiteral(0)))
	t.Column("win_ratio", schema.Real, schema.NotNull, schema.Default(schema.RealLiteral(0)))
}

func eventLogTable(t *schema.TableBuilder) {
	t.Column("id", schema.Integer, schema.PrimaryKey, schema.AutoIncrement)
	t.Column("kind", schema.Text, schema.NotNull)
	t.Column("player_id", schema.Integer)
	t.Column("payload", schema.JSON)
	t.Column("recorded_at", schema.Datetime, schema.NotNull, schema.Default(schema.Expr("CURRENT_TIMESTAMP")))
	t.Index("kind", "recorded_at")
}
