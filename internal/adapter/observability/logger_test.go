package observability_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/config"
)

func TestSetupLogger_ReturnsLogger(t *testing.T) {
	cfg := config.Config{AppEnv: "dev", OTELServiceName: "dispatchd-test"}
	logger := observability.SetupLogger(cfg)
	require.NotNil(t, logger)
	logger.Info("logger smoke test")
}

func TestSetupLogger_ExplicitLevel(t *testing.T) {
	cfg := config.Config{AppEnv: "prod", LogLevel: "error", OTELServiceName: "dispatchd-test"}
	logger := observability.SetupLogger(cfg)
	require.NotNil(t, logger)
	// Below the configured level; must not panic.
	logger.Debug("suppressed")
}
