package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJson_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")

	content := `{
		"endpoint_addr": ":9090",
		"database_dsn": "postgres://u:p@db:5432/auth",
		"redis_addr": "redis:6379",
		"kafka_broker_addr": "kafka:9092",
		"kafka_topic_user_created": "users.created",
		"secret_key": "json-secret",
		"access_token_validity_duration": "15m",
		"refresh_token_validity_duration": "168h",
		"max_active_sessions": 5,
		"max_login_attempts": 20,
		"login_block_duration": "100s"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"server", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, "postgres://u:p@db:5432/auth", cfg.DatabaseDSN)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "kafka:9092", cfg.KafkaBrokerAddr)
	assert.Equal(t, "users.created", cfg.KafkaTopicUserCreated)
	assert.Equal(t, "json-secret", cfg.SecretKey)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.Equal(t, 5, cfg.MaxActiveSessions)
	assert.Equal(t, 20, cfg.MaxLoginAttempts)
	assert.Equal(t, 100*time.Second, cfg.LoginBlockDuration)
}

func TestParseJson_NoFileIsNoop(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"server"}

	cfg := &Config{}
	cfg.LoadDefaults()
	before := *cfg
	parseJson(cfg)

	assert.Equal(t, before, *cfg)
}
