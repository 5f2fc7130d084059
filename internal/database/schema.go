package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kinship/internal/config"
	"kinship/internal/middleware"
	"kinship/internal/models"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do and what it found.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// MissingConstraints names row-level guards absent from the live schema.
	MissingConstraints []string
}

// schemaPlan is the set of steps ApplySchema takes for one config.
type schemaPlan struct {
	mode string
	sql  bool // embedded SQL migrations
	auto bool // AutoMigrate plus the friendship pair index
}

// rowGuard is a constraint the feed and friendship rules depend on.
type rowGuard struct {
	model any
	name  string
	index bool // unique index rather than a table constraint
}

var rowGuards = []rowGuard{
	{&models.Account{}, "accounts_email_key", true},
	{&models.Profile{}, "profiles_username_key", true},
	{&models.Post{}, "posts_privacy_check", false},
	{&models.Friendship{}, "friendships_status_check", false},
	{&models.Friendship{}, "friendships_no_self_check", false},
	{&models.Friendship{}, "friendships_sender_id_receiver_id_key", true},
	{&models.Friendship{}, "friendships_pair_key", true},
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func normalizedSchemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// planSchema decides which steps run. SQL migrations own the constraints in
// production; AutoMigrate is a development convenience.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: normalizedSchemaMode(cfg)}
	prodLike := isProdLikeEnv(cfg.Env)

	switch plan.mode {
	case SchemaModeSQL:
		plan.sql = true
	case SchemaModeAuto:
		if prodLike {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		plan.auto = true
	case SchemaModeHybrid:
		plan.sql = true
		plan.auto = !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// ApplySchema brings the schema up to date and fails if any row guard is missing afterwards.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.auto {
		middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate",
			slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		if err := ensureFriendshipPairIndex(ctx, db); err != nil {
			return err
		}
	}

	if missing := MissingConstraints(ctx, db); len(missing) > 0 {
		return fmt.Errorf("schema is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ensureFriendshipPairIndex adds the unordered-pair unique index, which struct tags cannot express.
func ensureFriendshipPairIndex(ctx context.Context, db *gorm.DB) error {
	least, greatest := "LEAST", "GREATEST"
	if db.Dialector.Name() == "sqlite" {
		least, greatest = "min", "max"
	}
	stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS friendships_pair_key ON friendships (%s(sender_id, receiver_id), %s(sender_id, receiver_id))", least, greatest)
	if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("create friendships_pair_key: %w", err)
	}
	return nil
}

// MissingConstraints lists the row guards the database does not have.
func MissingConstraints(ctx context.Context, db *gorm.DB) []string {
	m := db.WithContext(ctx).Migrator()
	var missing []string
	for _, g := range rowGuards {
		var ok bool
		if g.index {
			ok = m.HasIndex(g.model, g.name)
		} else {
			ok = m.HasConstraint(g.model, g.name)
		}
		if !ok {
			missing = append(missing, g.name)
		}
	}
	return missing
}

// GetSchemaStatus reports applied and pending migrations without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
		MissingConstraints: MissingConstraints(ctx, db),
	}
	if !plan.sql {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
