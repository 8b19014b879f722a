package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Warehouse WarehouseConfig
	Batch     BatchConfig
	Storage   StorageConfig
	SFTP      SFTPConfig
}

// DatabaseConfig holds staging-database configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// WarehouseConfig holds the analytical store connection
type WarehouseConfig struct {
	DSN          string
	QueryTimeout time.Duration
}

// BatchConfig holds batch cycle tuning
type BatchConfig struct {
	Size        int
	ItemTimeout time.Duration
	LeaseTTL    time.Duration
	ArtifactDir string
}

// StorageConfig holds the object storage destination
type StorageConfig struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	UsePathStyle bool
	KeyPrefix    string
}

// SFTPConfig holds the remote file endpoint
type SFTPConfig struct {
	Addr        string
	User        string
	Password    string
	KeyFile     string
	RemoteDir   string
	DialTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Warehouse: WarehouseConfig{
			DSN:          getEnv("WAREHOUSE_URL", ""),
			QueryTimeout: getEnvAsDuration("WAREHOUSE_QUERY_TIMEOUT", 5*time.Minute),
		},
		Batch: BatchConfig{
			Size:        getEnvAsInt("BATCH_SIZE", 10),
			ItemTimeout: getEnvAsDuration("ITEM_TIMEOUT", 10*time.Minute),
			LeaseTTL:    getEnvAsDuration("LEASE_TTL", 30*time.Minute),
			ArtifactDir: getEnv("ARTIFACT_DIR", "./tmp"),
		},
		Storage: StorageConfig{
			Bucket:       getEnv("AWS_S3_BUCKET", ""),
			Region:       getEnv("AWS_S3_REGION", "us-east-1"),
			AccessKey:    getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:     getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle: getEnvAsBool("AWS_S3_USE_PATH_STYLE", true),
			KeyPrefix:    getEnv("S3_KEY_PREFIX", "processed"),
		},
		SFTP: SFTPConfig{
			Addr:        getEnv("SFTP_ADDR", ""),
			User:        getEnv("SFTP_USER", ""),
			Password:    getEnv("SFTP_PASSWORD", ""),
			KeyFile:     getEnv("SFTP_KEY_FILE", ""),
			RemoteDir:   getEnv("SFTP_REMOTE_DIR", "/upload"),
			DialTimeout: getEnvAsDuration("SFTP_DIAL_TIMEOUT", 10*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. The inmem flag skips the
// checks that only apply when real external endpoints are in play.
func (c *Config) Validate(inmem bool) error {
	if c.Batch.Size <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if inmem {
		return nil
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Warehouse.DSN == "" {
		return NewAppError("CONFIG_ERROR", "WAREHOUSE_URL is required", ErrInvalidInput)
	}
	if c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "AWS_S3_BUCKET is required", ErrInvalidInput)
	}
	if c.SFTP.Addr == "" {
		return NewAppError("CONFIG_ERROR", "SFTP_ADDR is required", ErrInvalidInput)
	}
	if c.SFTP.Password == "" && c.SFTP.KeyFile == "" {
		return NewAppError("CONFIG_ERROR", "one of SFTP_PASSWORD or SFTP_KEY_FILE is required", ErrInvalidInput)
	}
	return nil
}
