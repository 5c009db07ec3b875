package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Speed-Jobs/jobwatch/internal/config"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func setBaseline() {
	viper.Set("store.backend", config.BackendMemory)
	viper.Set("watch.interval", "5m")
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("watch.source_url", "http://localhost:8080/postings")
	viper.Set("notify.expiry", "10s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Watch.Interval)
	assert.Equal(t, 10*time.Second, cfg.Notify.Expiry)
	assert.Equal(t, "http://localhost:8080/postings", cfg.Watch.SourceURL)
}

func TestValidate_UnknownBackend(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("store.backend", "etcd")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestValidate_FileBackendRequiresPath(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("store.backend", config.BackendFile)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path")
}

func TestValidate_RedisBackendRequiresAddr(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("store.backend", config.BackendRedis)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.redis.addr")
}

func TestValidate_AlertChannelRequiresRedis(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("notify.channel", "jobwatch:alerts")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.channel")
}

func TestValidate_IntervalMustBePositive(t *testing.T) {
	resetViper(t)
	setBaseline()
	viper.Set("watch.interval", "0s")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch.interval")
}
