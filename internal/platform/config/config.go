package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
)

// Storage drivers for compliance state.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogFormat string
	LogLevel  string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	TokenAddress  id.Address
	MasterAddress id.Address

	StorageDriver string
	StorageDSN    string

	// AdminToken guards /metrics when set.
	AdminToken string

	// CompliancePath is an optional YAML file seeding the compliance config.
	CompliancePath string

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig backs the registry and token revocation list. An empty URL
// keeps both in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit outbox relay. Requires postgres storage.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	ConsumerGroup string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           getEnv("SECUTOKEN_ADDR", ":8080"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSigningKey:  getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getEnv("JWT_ISSUER", "secutoken"),
		JWTAudience:    getEnv("JWT_AUDIENCE", "secutoken-api"),
		StorageDriver:  getEnv("STORAGE_DRIVER", StorageMemory),
		StorageDSN:     os.Getenv("STORAGE_DSN"),
		CompliancePath: os.Getenv("COMPLIANCE_CONFIG"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "secutoken.audit"),
			ConsumerGroup: getEnv("KAFKA_AUDIT_GROUP", "secutoken-audit-materializer"),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	var err error
	if cfg.TokenAddress, err = id.ParseAddress(os.Getenv("TOKEN_ADDRESS")); err != nil {
		return Server{}, fmt.Errorf("TOKEN_ADDRESS: %w", err)
	}
	if cfg.MasterAddress, err = id.ParseAddress(os.Getenv("MASTER_ADDRESS")); err != nil {
		return Server{}, fmt.Errorf("MASTER_ADDRESS: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks combinations FromEnv cannot express per variable.
func (s Server) Validate() error {
	switch s.StorageDriver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if s.StorageDSN == "" {
			return fmt.Errorf("STORAGE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", s.StorageDriver)
	}
	if s.Kafka.Enabled() && s.StorageDriver != StoragePostgres {
		return fmt.Errorf("KAFKA_BROKERS requires the postgres storage driver")
	}
	return nil
}

// LoadCompliance reads a YAML compliance configuration over the defaults.
// An empty path returns the defaults.
func LoadCompliance(path string) (models.Config, error) {
	cfg := models.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return models.Config{}, fmt.Errorf("read compliance config: %w", err)
	}
	return ParseCompliance(raw)
}

// ParseCompliance decodes YAML over the defaults and validates the result.
func ParseCompliance(raw []byte) (models.Config, error) {
	cfg := models.DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("decode compliance config: %w", err)
	}
	cfg = cfg.Normalize()
	cfg.Version = 1
	if err := cfg.Validate(); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
