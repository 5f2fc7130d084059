// Package bootstrap opens the runtime dependencies shared by the server and tools.
package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"kinship/internal/cache"
	"kinship/internal/config"
	"kinship/internal/database"
	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema connects without applying migrations.
	SkipSchema bool
	// DemoPreset seeds an empty development database with this preset.
	DemoPreset string
}

// Runtime holds the shared connections. Redis is nil when unreachable.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// InitRuntime connects to the database and Redis, then optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{DB: db, Redis: cache.InitRedis(cfg.RedisURL)}

	if err := ensureDemoData(cfg, db, opts.DemoPreset); err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	return rt, nil
}

// Close releases both connections.
func (rt *Runtime) Close() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ensureDemoData seeds preset into an empty development database.
func ensureDemoData(cfg *config.Config, db *gorm.DB, preset string) error {
	preset = strings.TrimSpace(preset)
	if preset == "" || cfg == nil || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	var count int64
	if err := db.Model(&models.Account{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	presets, err := seed.BuiltinPresets()
	if err != nil {
		return err
	}
	p, ok := presets[preset]
	if !ok {
		return fmt.Errorf("unknown demo preset %q", preset)
	}
	s, err := seed.NewSeeder(db, seed.Options{})
	if err != nil {
		return err
	}
	if err := s.Run(p); err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded", slog.String("preset", preset))
	return nil
}
