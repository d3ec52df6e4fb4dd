package main

import (
	"log/slog"
	"os"
	"strings"

	"segdb/pkg/config"
)

// initConfig загружает конфиг из YAML. Если файл не найден, возвращается config.Default().
func initConfig(path, dir string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dir != "" {
		cfg.Persistence.RootPath = dir
	}
	return cfg, cfg.Validate()
}

// initLogger настраивает глобальный slog.Logger (JSON или текстовый).
// Логи идут в stderr, stdout занят результатами команд.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logger.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	return logger
}
