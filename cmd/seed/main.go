// Command seed fills a development database with demo members, friendships and posts.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"kinship/internal/bootstrap"
	"kinship/internal/config"
	"kinship/internal/middleware"
	"kinship/internal/seed"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	preset := flag.String("preset", "small", "Preset to apply")
	presetFile := flag.String("presets", "", "YAML file with extra presets")
	clean := flag.Bool("clean", true, "Remove existing data first")
	fast := flag.Bool("fast", false, "Skip bcrypt; seeded members cannot sign in")
	flag.Parse()

	presets, err := seed.BuiltinPresets()
	if err != nil {
		return err
	}
	if *presetFile != "" {
		f, err := os.Open(*presetFile)
		if err != nil {
			return fmt.Errorf("open presets: %w", err)
		}
		extra, err := seed.LoadPresets(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		for name, p := range extra {
			presets[name] = p
		}
	}
	p, ok := presets[*preset]
	if !ok {
		return fmt.Errorf("unknown preset %q (have %s)", *preset, strings.Join(seed.PresetNames(presets), ", "))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return fmt.Errorf("refusing to seed a production database")
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := seed.NewSeeder(rt.DB, seed.Options{SkipBcrypt: *fast, BatchSize: 200})
	if err != nil {
		return err
	}
	if *clean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}
	if err := s.Run(p); err != nil {
		return err
	}

	if *fast {
		middleware.Logger.Info("seed complete", slog.String("preset", *preset))
	} else {
		middleware.Logger.Info("seed complete", slog.String("preset", *preset), slog.String("password", seed.DefaultPassword))
	}
	return nil
}
