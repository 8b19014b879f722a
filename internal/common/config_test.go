package common

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/stage")
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("LEASE_TTL", "")

	cfg := LoadConfig()
	if cfg.Batch.Size != 10 {
		t.Fatalf("unexpected default batch size: %d", cfg.Batch.Size)
	}
	if cfg.Batch.LeaseTTL != 30*time.Minute {
		t.Fatalf("unexpected default lease ttl: %s", cfg.Batch.LeaseTTL)
	}
	if cfg.Storage.KeyPrefix != "processed" {
		t.Fatalf("unexpected default key prefix: %s", cfg.Storage.KeyPrefix)
	}
	if cfg.SFTP.RemoteDir != "/upload" {
		t.Fatalf("unexpected default remote dir: %s", cfg.SFTP.RemoteDir)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("ITEM_TIMEOUT", "90s")
	t.Setenv("AWS_S3_USE_PATH_STYLE", "false")

	cfg := LoadConfig()
	if cfg.Batch.Size != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Batch.Size)
	}
	if cfg.Batch.ItemTimeout != 90*time.Second {
		t.Fatalf("expected item timeout 90s, got %s", cfg.Batch.ItemTimeout)
	}
	if cfg.Storage.UsePathStyle {
		t.Fatal("expected path style disabled")
	}
}

func TestValidateRequiresEndpoints(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("WAREHOUSE_URL", "")
	t.Setenv("AWS_S3_BUCKET", "")
	t.Setenv("SFTP_ADDR", "")

	cfg := LoadConfig()
	if err := cfg.Validate(false); err == nil {
		t.Fatal("expected validation error for missing endpoints")
	}
	if err := cfg.Validate(true); err != nil {
		t.Fatalf("inmem mode should not require endpoints: %v", err)
	}
}

func TestValidateRequiresSFTPCredentials(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/stage")
	t.Setenv("WAREHOUSE_URL", "postgres://localhost/warehouse")
	t.Setenv("AWS_S3_BUCKET", "exports")
	t.Setenv("SFTP_ADDR", "sftp.internal:22")
	t.Setenv("SFTP_PASSWORD", "")
	t.Setenv("SFTP_KEY_FILE", "")

	cfg := LoadConfig()
	if err := cfg.Validate(false); err == nil {
		t.Fatal("expected validation error for missing sftp credentials")
	}

	t.Setenv("SFTP_PASSWORD", "secret")
	cfg = LoadConfig()
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsNonPositiveBatch(t *testing.T) {
	t.Setenv("BATCH_SIZE", "-1")

	cfg := LoadConfig()
	if err := cfg.Validate(true); err == nil {
		t.Fatal("expected validation error for non-positive batch size")
	}
}
