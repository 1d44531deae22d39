// Package logging builds the application's zap logger
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// Modes accepted by New
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// New creates a sugared logger. Production mode logs JSON at info level,
// anything else logs human readable output at debug level.
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", ModeProduction:
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
