package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, 8, cfg.Partitions)
	assert.Equal(t, "xpayment.request", cfg.RequestTopic)
	assert.Equal(t, "xpayment.response", cfg.ResponseTopic)
	assert.Equal(t, 10*time.Second, cfg.SimulatorDelay)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"postgres without url", map[string]string{"STORAGE_DRIVER": "postgres"}, true},
		{"memory without url", map[string]string{"STORAGE_DRIVER": "memory"}, false},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mysql"}, true},
		{"unknown transport", map[string]string{"STORAGE_DRIVER": "memory", "TRANSPORT": "kafka"}, true},
		{"zero partitions", map[string]string{"STORAGE_DRIVER": "memory", "PARTITIONS": "0"}, true},
		{"bad duration", map[string]string{"STORAGE_DRIVER": "memory", "OUTBOX_INTERVAL": "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadAdapter(t *testing.T) {
	t.Setenv("SIMULATOR_DELAY", "250ms")
	t.Setenv("SIMULATOR_STATUS", "CANCELED")

	cfg, err := LoadAdapter()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.SimulatorDelay)
	assert.Equal(t, "CANCELED", cfg.SimulatorStatus)
	assert.Equal(t, "settlement-adapter", cfg.ConsumerGroup)
	assert.Equal(t, "xpayment.request", cfg.RequestTopic)
}
