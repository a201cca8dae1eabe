// Package debug wires the eino devops visual debugger when enabled.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
)

// Init starts the eino debug plugin when the config enables it. A disabled
// config is a no-op.
func Init(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.EinoDebugEnabled {
		return nil
	}

	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("init eino debug plugin: %w", err)
	}

	log.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", cfg.EinoDebugPort)).
		Msg("eino debug server initialized")
	return nil
}
