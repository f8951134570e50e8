// Package logger provides a small factory over log/slog with environment
// presets and a few attribute helpers shared across the service.
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "paywall"))
//	logger.SetAsDefault(log)
package logger
