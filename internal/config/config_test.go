package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "valkey", Addrs: []string{"localhost:6379"}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `database.driver must be "redis" or "memory", got "valkey"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		wantErr bool
	}{
		{"redis with addrs", DatabaseConfig{Driver: DriverRedis, Addrs: []string{"localhost:6379"}}, false},
		{"redis without addrs", DatabaseConfig{Driver: DriverRedis}, true},
		{"redis negative db", DatabaseConfig{Driver: DriverRedis, Addrs: []string{"localhost:6379"}, DB: -1}, true},
		{"memory without addrs", DatabaseConfig{Driver: DriverMemory}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{HTTP: HTTPConfig{Port: 8080}, Database: tt.db}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 0},
		Database: DatabaseConfig{Driver: DriverMemory},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_SearchSizes(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: DriverMemory},
		Search:   SearchConfig{DefaultSize: 500, MaxSize: 100},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for default size above max size")
	}
	if !strings.Contains(err.Error(), "search.default_size") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9200 {
		t.Errorf("expected Port=9200, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverRedis {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Search.TimestampField != "@timestamp" {
		t.Errorf("expected TimestampField=@timestamp, got %q", cfg.Search.TimestampField)
	}
	if cfg.Search.EventCategoryField != "event.category" {
		t.Errorf("expected EventCategoryField=event.category, got %q", cfg.Search.EventCategoryField)
	}
	if cfg.Search.ImplicitJoinKeyField != "agent.id" {
		t.Errorf("expected ImplicitJoinKeyField=agent.id, got %q", cfg.Search.ImplicitJoinKeyField)
	}
	if cfg.Search.DefaultSize != 10 || cfg.Search.MaxSize != 10000 {
		t.Errorf("expected sizes 10/10000, got %d/%d", cfg.Search.DefaultSize, cfg.Search.MaxSize)
	}
	if cfg.Search.Timeout() != 30*time.Second {
		t.Errorf("expected Timeout=30s, got %v", cfg.Search.Timeout())
	}
	if cfg.SchemaCache.Size != 0 || cfg.SchemaCache.TTL() != time.Minute {
		t.Errorf("expected cache disabled with 1m ttl, got %d/%v", cfg.SchemaCache.Size, cfg.SchemaCache.TTL())
	}
	if cfg.RateLimit.RPS != 0 || cfg.RateLimit.Burst != 0 {
		t.Errorf("expected rate limit disabled, got %v/%d", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if cfg.Ingest.MaxBatchSize != 1000 {
		t.Errorf("expected MaxBatchSize=1000, got %d", cfg.Ingest.MaxBatchSize)
	}
	if cfg.Storage.KeyPrefix != "seqdex:" {
		t.Errorf("expected KeyPrefix='seqdex:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080, ReadTimeoutSec: 30, WriteTimeoutSec: 90, ShutdownSec: 5},
		Database:  DatabaseConfig{Driver: DriverMemory, ReadinessTimeout: 15},
		Search:    SearchConfig{TimestampField: "ts", DefaultSize: 50, MaxSize: 500, TimeoutSec: 5},
		RateLimit: RateLimitConfig{RPS: 2.5},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutSec != 90 {
		t.Errorf("expected WriteTimeoutSec=90, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected Driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Search.TimestampField != "ts" {
		t.Errorf("expected TimestampField=ts, got %q", cfg.Search.TimestampField)
	}
	if cfg.Search.Timeout() != 5*time.Second {
		t.Errorf("expected Timeout=5s, got %v", cfg.Search.Timeout())
	}
	if cfg.RateLimit.Burst != 2 {
		t.Errorf("expected Burst derived from RPS=2, got %d", cfg.RateLimit.Burst)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SEQDEX_TEST_ADDR", "redis-1:6379")

	cfg, err := Parse([]byte(`
http:
  port: 9300
database:
  driver: redis
  addrs: ["${SEQDEX_TEST_ADDR}"]
  password: "${SEQDEX_TEST_UNSET:-secret}"
  db: 2
  dial_timeout_sec: 3
search:
  timestamp_field: "event.created"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Database.Addrs) != 1 || cfg.Database.Addrs[0] != "redis-1:6379" {
		t.Errorf("addrs = %v", cfg.Database.Addrs)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("password = %q, want default", cfg.Database.Password)
	}
	if cfg.Database.DB != 2 || cfg.Database.DialTimeout() != 3*time.Second {
		t.Errorf("db = %d, dial timeout = %s", cfg.Database.DB, cfg.Database.DialTimeout())
	}
	if cfg.Search.TimestampField != "event.created" {
		t.Errorf("timestamp field = %q", cfg.Search.TimestampField)
	}
	if cfg.Search.MaxSize != 10000 {
		t.Errorf("defaults not applied: max size = %d", cfg.Search.MaxSize)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("database:\n  driver: redis\n")); err == nil {
		t.Error("expected validation error for missing addrs")
	}
}

func TestLoad_ConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqdex.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("unused")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
