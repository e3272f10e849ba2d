package config

import (
	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/engine"
)

// EngineOptions translates the settings and instruments into engine options.
func EngineOptions(cfg Config, policy lending.Policy, instruments Instruments) []engine.Option {
	options := []engine.Option{
		engine.WithPolicy(policy),
		engine.WithMaxAttempts(cfg.RetryAttempts),
	}

	if instruments.Logger != nil {
		options = append(options, engine.WithLogger(instruments.Logger))
	}

	if instruments.ContextualLogger != nil {
		options = append(options, engine.WithContextualLogger(instruments.ContextualLogger))
	}

	if instruments.Metrics != nil {
		options = append(options, engine.WithMetrics(instruments.Metrics))
	}

	if instruments.Tracing != nil {
		options = append(options, engine.WithTracing(instruments.Tracing))
	}

	return options
}
