package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinexw/sqslistener/config"
)

const sampleYAML = `
aws:
  region: eu-west-1
listener:
  queues:
    - name: orders
      max_messages: 5
      wait_time: 10s
      visibility_timeout: 30s
      send_to: receipts
    - name: payments
  worker_count: 4
  backoff: 2s
  shutdown_grace: 5s
logger:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	require.Len(t, cfg.Listener.Queues, 2)
	assert.Equal(t, "orders", cfg.Listener.Queues[0].Name)
	assert.Equal(t, int32(5), cfg.Listener.Queues[0].MaxMessages)
	assert.Equal(t, 10*time.Second, cfg.Listener.Queues[0].WaitTime)
	assert.Equal(t, 30*time.Second, cfg.Listener.Queues[0].VisibilityTimeout)
	assert.Equal(t, "receipts", cfg.Listener.Queues[0].SendTo)
	assert.Equal(t, 4, cfg.Listener.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.Listener.Backoff)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("LISTENER_WORKER_COUNT", "16")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Listener.WorkerCount)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := config.Load(writeConfig(t, "listener:\n  nonsense: true\n"))
	require.Error(t, err)
}

func TestLoadRejectsMissingQueues(t *testing.T) {
	_, err := config.Load(writeConfig(t, "listener:\n  queues: []\n"))
	require.ErrorContains(t, err, "at least one queue")
}

func TestValidateRejectsDuplicateQueues(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
listener:
  queues:
    - name: orders
    - name: orders
`))
	require.ErrorContains(t, err, "configured twice")
}

func TestValidateRejectsBadMaxMessages(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
listener:
  queues:
    - name: orders
      max_messages: 11
`))
	require.ErrorContains(t, err, "max_messages")
}

func TestValidateRejectsNegativeMaxMessages(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
listener:
  queues:
    - name: orders
      max_messages: -1
`))
	require.ErrorContains(t, err, "max_messages must be between 0 and 10")
}

func TestValidateAcceptsOmittedMaxMessages(t *testing.T) {
	// Zero means the container applies its default batch size.
	cfg, err := config.Load(writeConfig(t, `
listener:
  queues:
    - name: orders
`))
	require.NoError(t, err)
	assert.Zero(t, cfg.Listener.Queues[0].MaxMessages)
}

func TestValidateRejectsExcessiveWaitTime(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
listener:
  queues:
    - name: orders
      wait_time: 30s
`))
	require.ErrorContains(t, err, "wait_time")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	_, err := config.Load(writeConfig(t, sampleYAML))
	require.ErrorContains(t, err, "log level")
}

func TestContainerConfigMapping(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cc := cfg.ContainerConfig()
	require.Len(t, cc.Queues, 2)
	assert.Equal(t, "orders", cc.Queues[0].Name)
	assert.Equal(t, int32(5), cc.Queues[0].MaxMessages)
	assert.Equal(t, 30*time.Second, cc.Queues[0].VisibilityTimeout)
	assert.Equal(t, 4, cc.WorkerCount)
	assert.Equal(t, 2*time.Second, cc.Backoff)
	assert.Equal(t, 5*time.Second, cc.ShutdownGrace)
}

func TestBuildLogger(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	logger, err := cfg.Logger.BuildLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(-1), "debug level should be enabled") // zapcore.DebugLevel == -1
}
