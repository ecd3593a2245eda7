package backend

import (
	"go.uber.org/zap"
)

const (
	// ModeMock selects the in-process mock backend.
	ModeMock = "MOCK"
	// ModeReal selects the OpenAI-compatible backend.
	ModeReal = "REAL"
)

// New creates a backend for mode. Any mode other than MOCK returns a real Client.
func New(mode string, cfg Config, logger *zap.Logger) Backend {
	if mode == ModeMock {
		logger.Info("BACKEND_MODE=MOCK detected, using mock completion backend")
		return NewMockClient()
	}
	return NewClient(cfg, logger)
}
