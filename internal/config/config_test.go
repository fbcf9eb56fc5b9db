package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, 300, c.IdempTTLSecs)
	assert.Equal(t, time.Duration(0), c.SweepInterval)
	assert.Contains(t, c.MySQLDSN(), "@tcp(mysql:3306)/peerlend?")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_port: "9090"
mysql_db: lending
kafka_brokers: [k1:9092, k2:9092]
sweep_interval: 1m
queue_workers: 8
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("QUEUE_WORKERS", "")
	t.Setenv("SETTINGS_CACHE_TTL", "5s")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", c.AppPort, "env wins over file")
	assert.Equal(t, "lending", c.MySQLDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, time.Minute, c.SweepInterval)
	assert.Equal(t, 8, c.QueueWorkers)
	assert.Equal(t, 5*time.Second, c.SettingsCacheTTL)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REDIS_DB", "")
	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := defaults()
		c.InternalSecret = "s3cret"
		c.JWTSecret = "0123456789abcdef"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"mysql host":      func(c *Config) { c.MySQLHost = "" },
		"bad port":        func(c *Config) { c.MySQLPort = "not-a-port" },
		"app port":        func(c *Config) { c.AppPort = "" },
		"internal secret": func(c *Config) { c.InternalSecret = "" },
		"short jwt":       func(c *Config) { c.JWTSecret = "short" },
		"negative sweep":  func(c *Config) { c.SweepInterval = -time.Second },
		"kafka w/o topic": func(c *Config) { c.KafkaBrokers = []string{"k:9092"}; c.KafkaTopic = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
