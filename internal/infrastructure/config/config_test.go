package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 3*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, 1, cfg.Registration.RetryMaxAttempts)
	assert.Equal(t, "mock", cfg.Notification.Type)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  port: 9000
store:
  type: postgres
  lock_timeout: 750ms
registration:
  timeout: 2s
  circuit_breaker_threshold: 0.8
notification:
  type: kafka
  kafka_topic: purchases
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("APP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.LockTimeout)
	assert.Equal(t, 2*time.Second, cfg.Registration.Timeout)
	assert.InDelta(t, 0.8, cfg.Registration.CircuitBreakerThreshold, 1e-9)
	assert.Equal(t, "purchases", cfg.Notification.KafkaTopic)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notification.KafkaBrokers)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	// untouched keys keep their defaults
	assert.Equal(t, int32(25), cfg.Store.MaxConns)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad store", map[string]string{"APP_STORE_TYPE": "redis"}, "store.type"},
		{"bad notifier", map[string]string{"APP_NOTIFICATION_TYPE": "sms"}, "notification.type"},
		{"bad lock timeout", map[string]string{"APP_LOCK_TIMEOUT": "soon"}, "APP_LOCK_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
