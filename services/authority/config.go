// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authority

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSim/pkg/logging"
	"github.com/AleutianAI/AleutianSim/pkg/validation"
)

const (
	// MaxConfigFileSize is the maximum allowed config file size (1MB).
	// Prevents memory issues from oversized or hostile files.
	MaxConfigFileSize = 1024 * 1024
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config configures an Engine.
//
// Zero fields are filled by defaults, except LocalActor, which is
// required: the engine must know which actor it observes as.
//
// The dynamic subset (thresholds, cache TTL, sweep interval) can be
// changed at runtime via Engine.Reconfigure or the WatchConfig watcher;
// LocalActor and TickInterval are fixed at construction.
type Config struct {
	// LocalActor is the identity the engine observes as. Tag-probe votes
	// of "local" mean the tag names this actor.
	LocalActor ActorID `yaml:"local_actor" validate:"required"`

	// LatencyThreshold is the update-age boundary for the latency probe:
	// ages below it vote local, at or above it remote. Default 100ms.
	LatencyThreshold time.Duration `yaml:"latency_threshold" validate:"gt=0"`

	// LocalThreshold is the default confidence bar for IsLocal. Default 0.6.
	LocalThreshold float64 `yaml:"local_threshold" validate:"gt=0,lte=1"`

	// RemoteThreshold is the default confidence bar for IsRemote. Default 0.6.
	RemoteThreshold float64 `yaml:"remote_threshold" validate:"gt=0,lte=1"`

	// NeighborRemoteThreshold is the confidence at which a one-hop
	// neighbor's remote verdict vetoes mutation. Default 0.7.
	NeighborRemoteThreshold float64 `yaml:"neighbor_remote_threshold" validate:"gt=0,lte=1"`

	// SelfLocalThreshold is the local confidence an object itself must
	// reach before mutation is permitted. Stricter than LocalThreshold
	// because the mutation is about to be committed. Default 0.8.
	SelfLocalThreshold float64 `yaml:"self_local_threshold" validate:"gt=0,lte=1"`

	// CacheTTL is the result cache's time-to-live. Default 1s.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gt=0"`

	// SweepInterval is the minimum time between opportunistic cache
	// sweeps. Default 5s.
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`

	// TickInterval drives Engine.Run's scheduler ticks. Default 1/30s.
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`

	// BatchConcurrency bounds BatchProcess fan-out. Default 8.
	BatchConcurrency int `yaml:"batch_concurrency" validate:"gte=1"`
}

// DefaultConfig returns the engine defaults. LocalActor is left empty
// and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		LatencyThreshold:        100 * time.Millisecond,
		LocalThreshold:          0.6,
		RemoteThreshold:         0.6,
		NeighborRemoteThreshold: 0.7,
		SelfLocalThreshold:      0.8,
		CacheTTL:                time.Second,
		SweepInterval:           5 * time.Second,
		TickInterval:            time.Second / 30,
		BatchConcurrency:        8,
	}
}

// applyDefaults fills zero fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.LatencyThreshold == 0 {
		c.LatencyThreshold = def.LatencyThreshold
	}
	if c.LocalThreshold == 0 {
		c.LocalThreshold = def.LocalThreshold
	}
	if c.RemoteThreshold == 0 {
		c.RemoteThreshold = def.RemoteThreshold
	}
	if c.NeighborRemoteThreshold == 0 {
		c.NeighborRemoteThreshold = def.NeighborRemoteThreshold
	}
	if c.SelfLocalThreshold == 0 {
		c.SelfLocalThreshold = def.SelfLocalThreshold
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.TickInterval == 0 {
		c.TickInterval = def.TickInterval
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = def.BatchConcurrency
	}
}

// Validate checks the config after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.ValidateActorID(string(c.LocalActor)); err != nil {
		return fmt.Errorf("%w: local_actor: %v", ErrInvalidConfig, err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML engine configuration from path.
//
// Missing fields fall back to defaults. The file is capped at
// MaxConfigFileSize.
func LoadConfig(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return Config{}, fmt.Errorf("%w: config file exceeds %d bytes", ErrInvalidConfig, MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %v", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WatchConfig hot-reloads the dynamic config subset whenever the file at
// path changes, until the context is cancelled. Invalid or unreadable
// updates are logged and skipped; the engine keeps its last good config.
//
// The call returns after the watcher is installed; reloads happen on a
// background goroutine.
func WatchConfig(ctx context.Context, path string, eng *Engine, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// watches installed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(target)
				if err != nil {
					logger.Warn("config reload skipped", "path", target, "error", err)
					continue
				}
				eng.Reconfigure(cfg)
				logger.Info("config reloaded",
					"path", target,
					"cache_ttl", cfg.CacheTTL,
					"latency_threshold", cfg.LatencyThreshold)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
