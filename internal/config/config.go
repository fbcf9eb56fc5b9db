package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string `yaml:"app_port"`
	Env     string `yaml:"env"`

	MySQLHost string `yaml:"mysql_host"`
	MySQLPort string `yaml:"mysql_port"`
	MySQLDB   string `yaml:"mysql_db"`
	MySQLUser string `yaml:"mysql_user"`
	MySQLPass string `yaml:"mysql_pass"`

	RedisAddr string `yaml:"redis_addr"`
	RedisPass string `yaml:"redis_pass"`
	RedisDB   int    `yaml:"redis_db"`

	IdempTTLSecs int `yaml:"idempotency_ttl_seconds"`

	// Bearer secret for /internal endpoints called by the scheduler and loan servicing.
	InternalSecret string `yaml:"internal_secret"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTIssuer      string `yaml:"jwt_issuer"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jDatabase string `yaml:"neo4j_database"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPass     string `yaml:"neo4j_pass"`

	QueueWorkers  int `yaml:"queue_workers"`
	QueueCapacity int `yaml:"queue_capacity"`

	// SweepInterval runs the in-process sweep; zero leaves it to an external scheduler.
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SettingsCacheTTL time.Duration `yaml:"settings_cache_ttl"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func defaults() *Config {
	return &Config{
		AppPort:   "8080",
		Env:       "development",
		MySQLHost: "mysql",
		MySQLPort: "3306",
		MySQLDB:   "peerlend",
		MySQLUser: "peerlend",
		MySQLPass: "peerlend",

		RedisAddr:    "redis:6379",
		IdempTTLSecs: 300,

		JWTIssuer:  "peerlend",
		KafkaTopic: "peerlend.notifications",

		QueueWorkers:     4,
		QueueCapacity:    1024,
		SettingsCacheTTL: 30 * time.Second,
		LogLevel:         "info",
	}
}

// Load reads defaults, then the YAML file named by CONFIG_FILE, then env.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.AppPort = getenv("APP_PORT", c.AppPort)
	c.Env = getenv("APP_ENV", c.Env)
	c.MySQLHost = getenv("MYSQL_HOST", c.MySQLHost)
	c.MySQLPort = getenv("MYSQL_PORT", c.MySQLPort)
	c.MySQLDB = getenv("MYSQL_DB", c.MySQLDB)
	c.MySQLUser = getenv("MYSQL_USER", c.MySQLUser)
	c.MySQLPass = getenv("MYSQL_PASS", c.MySQLPass)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = getenv("REDIS_PASS", c.RedisPass)
	c.InternalSecret = getenv("INTERNAL_SECRET", c.InternalSecret)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getenv("JWT_ISSUER", c.JWTIssuer)
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	c.Neo4jURI = getenv("NEO4J_URI", c.Neo4jURI)
	c.Neo4jDatabase = getenv("NEO4J_DATABASE", c.Neo4jDatabase)
	c.Neo4jUser = getenv("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPass = getenv("NEO4J_PASS", c.Neo4jPass)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getenv("LOG_FILE", c.LogFile)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.RedisDB},
		{"IDEMPOTENCY_TTL_SECONDS", &c.IdempTTLSecs},
		{"QUEUE_WORKERS", &c.QueueWorkers},
		{"QUEUE_CAPACITY", &c.QueueCapacity},
	}
	for _, it := range ints {
		if v := os.Getenv(it.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", it.key, v, err)
			}
			*it.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SWEEP_INTERVAL", &c.SweepInterval},
		{"SETTINGS_CACHE_TTL", &c.SettingsCacheTTL},
	}
	for _, it := range durations {
		if v := os.Getenv(it.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", it.key, v, err)
			}
			*it.dst = d
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.InternalSecret == "" {
		return errors.New("missing INTERNAL_SECRET")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if c.SweepInterval < 0 || c.SettingsCacheTTL < 0 {
		return errors.New("intervals must not be negative")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
