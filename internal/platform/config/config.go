package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selectors.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
	BackendLevelDB  = "leveldb"
	BackendIPFS     = "ipfs"

	ScanSequential = "sequential"
	ScanParallel   = "parallel"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	Environment      string
	LogLevel         string
	DatabaseURL      string
	MaxDocumentBytes int64

	Ledger   Ledger
	Metadata Metadata
	Storage  Storage
	Issuer   Issuer
	Audit    Audit

	ReconcileInterval time.Duration
}

// Ledger configures the append-only credential registry.
type Ledger struct {
	Backend     string
	LevelDBPath string
	MaxScan     int
	ScanMode    string
	Timeout     time.Duration
}

// Metadata configures the token-keyed metadata store.
type Metadata struct {
	Backend  string
	MySQLDSN string
	RedisURL string
	Timeout  time.Duration
}

// Storage configures the content-addressed document store.
type Storage struct {
	Backend    string
	IPFSAPIURL string
	Timeout    time.Duration
}

// Issuer configures issuer bearer token validation.
type Issuer struct {
	JWTSecret   string
	TokenIssuer string
	TokenTTL    time.Duration
}

// Audit configures where audit events go. No brokers means in-process only.
type Audit struct {
	KafkaBrokers []string
	Topic        string
}

// Defaults.
const (
	DefaultMaxScan          = 20
	DefaultMaxDocumentBytes = 10 << 20
	defaultExternalTimeout  = 10 * time.Second
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:             envOr("IDENTIX_ADDR", ":8080"),
		Environment:      envOr("IDENTIX_ENV", "development"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MaxDocumentBytes: envInt64("MAX_DOCUMENT_BYTES", DefaultMaxDocumentBytes),
		Ledger: Ledger{
			Backend:     strings.ToLower(envOr("LEDGER_BACKEND", BackendMemory)),
			LevelDBPath: envOr("LEDGER_LEVELDB_PATH", "data/ledger"),
			MaxScan:     int(envInt64("LEDGER_MAX_SCAN", DefaultMaxScan)),
			ScanMode:    strings.ToLower(envOr("LEDGER_SCAN_MODE", ScanSequential)),
			Timeout:     envDuration("LEDGER_TIMEOUT", defaultExternalTimeout),
		},
		Metadata: Metadata{
			Backend:  strings.ToLower(envOr("METADATA_BACKEND", BackendMemory)),
			MySQLDSN: os.Getenv("MYSQL_DSN"),
			RedisURL: envOr("REDIS_URL", "redis://localhost:6379/0"),
			Timeout:  envDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Storage: Storage{
			Backend:    strings.ToLower(envOr("STORAGE_BACKEND", BackendMemory)),
			IPFSAPIURL: envOr("IPFS_API_URL", "localhost:5001"),
			Timeout:    envDuration("STORAGE_TIMEOUT", 30*time.Second),
		},
		Issuer: Issuer{
			// Use a default for development - should be overridden in production
			JWTSecret:   envOr("ISSUER_JWT_SECRET", "dev-issuer-secret-change-in-production"),
			TokenIssuer: envOr("ISSUER_JWT_ISSUER", "identix"),
			TokenTTL:    envDuration("ISSUER_TOKEN_TTL", 12*time.Hour),
		},
		Audit: Audit{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        envOr("AUDIT_TOPIC", "identix.audit"),
		},
		ReconcileInterval: envDuration("RECONCILE_INTERVAL", 15*time.Minute),
	}
}

// Validate reports the first inconsistent setting.
func (s Server) Validate() error {
	switch s.Ledger.Backend {
	case BackendMemory, BackendLevelDB:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", s.Ledger.Backend)
	}

	switch s.Metadata.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("METADATA_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendMySQL:
		if s.Metadata.MySQLDSN == "" {
			return fmt.Errorf("METADATA_BACKEND=mysql requires MYSQL_DSN")
		}
	default:
		return fmt.Errorf("unknown METADATA_BACKEND %q", s.Metadata.Backend)
	}

	switch s.Storage.Backend {
	case BackendMemory, BackendIPFS:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.Storage.Backend)
	}

	if s.Ledger.ScanMode != ScanSequential && s.Ledger.ScanMode != ScanParallel {
		return fmt.Errorf("unknown LEDGER_SCAN_MODE %q", s.Ledger.ScanMode)
	}
	if s.Ledger.MaxScan < 1 {
		return fmt.Errorf("LEDGER_MAX_SCAN must be positive, got %d", s.Ledger.MaxScan)
	}
	if s.MaxDocumentBytes < 1 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive, got %d", s.MaxDocumentBytes)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
