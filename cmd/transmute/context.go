package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"transmute/internal/config"
	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/pipeline"
)

// commandContext lazily loads configuration and shared dependencies so that
// commands annotated with skipConfigLoad never touch the filesystem.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	cfg    *config.Config
	logger *slog.Logger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if *c.logLevelFlag != "" {
		level = *c.logLevelFlag
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

// buildPipeline wires the supervisor and pipeline for a run. The returned
// context cancels on SIGINT/SIGTERM so in-flight encodes are aborted and
// their temp artifacts discarded.
func (c *commandContext) buildPipeline(parent context.Context) (context.Context, context.CancelFunc, *pipeline.Pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	supervisor := heartbeat.New(logger, cfg.Heartbeat)
	go supervisor.Run(ctx)

	p, err := pipeline.New(cfg, supervisor, logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, p, nil
}
