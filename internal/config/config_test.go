package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so host settings do not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DB_DRIVER", "DATABASE_URL", "DB_URL", "SERVER_PORT", "PORT", "REDIS_URL",
		"UPLOAD_MAX_FILE_SIZE", "UPLOAD_BATCH_SIZE", "UPLOAD_ALLOWED_EXTENSIONS",
		"UPLOAD_TASK_RETENTION", "LOG_LEVEL", "LOG_FORMAT", "METRICS_PATH",
	} {
		t.Setenv(name, "")
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Database: DatabaseConfig{Driver: "memory", MaxConns: 4, MinConns: 1},
		Upload: UploadConfig{
			MaxFileSize:       50 << 20,
			AllowedExtensions: []string{".csv"},
			BatchSize:         100,
			MaxConcurrent:     1,
			MaxWaitTime:       time.Second,
			MaxTaskErrors:     10,
			MaxRetainedTasks:  10,
			TaskRetention:     time.Hour,
			JanitorInterval:   time.Minute,
		},
		Cache:   CacheConfig{ResultsTTL: time.Hour, StatsTTL: time.Hour},
		Results: ResultsConfig{DefaultPageSize: 50, MaxPageSize: 1000},
		Rate:    RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/natijti")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Upload.MaxFileSize != 50*1024*1024 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 50*1024*1024)
	}
	if cfg.Upload.BatchSize != 100 {
		t.Errorf("Upload.BatchSize = %d, want %d", cfg.Upload.BatchSize, 100)
	}
	if cfg.Cache.ResultsTTL != time.Hour || cfg.Cache.StatsTTL != 2*time.Hour {
		t.Errorf("Cache TTLs = %v/%v, want 1h/2h", cfg.Cache.ResultsTTL, cfg.Cache.StatsTTL)
	}
	want := []string{".csv", ".xlsx", ".xlsm"}
	if strings.Join(cfg.Upload.AllowedExtensions, ",") != strings.Join(want, ",") {
		t.Errorf("AllowedExtensions = %v, want %v", cfg.Upload.AllowedExtensions, want)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_BATCH_SIZE", "250")
	t.Setenv("UPLOAD_TASK_RETENTION", "90m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Upload.BatchSize != 250 {
		t.Errorf("Upload.BatchSize = %d, want %d", cfg.Upload.BatchSize, 250)
	}
	if cfg.Upload.TaskRetention != 90*time.Minute {
		t.Errorf("Upload.TaskRetention = %v, want %v", cfg.Upload.TaskRetention, 90*time.Minute)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_URL", "postgres://localhost/alt")
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alt" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alt")
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7000)
	}
}

func TestLoad_MemoryDriverNeedsNoURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "memory")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want mention of DATABASE_URL", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/natijti")
	t.Setenv("UPLOAD_BATCH_SIZE", "lots")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for non-numeric UPLOAD_BATCH_SIZE")
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"50MB", 50 << 20, false},
		{"512kb", 512 << 10, false},
		{"2 GB", 2 << 30, false},
		{"10B", 10, false},
		{"MB", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByteSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "DB_DRIVER"},
		{"sqlite without url", func(c *Config) { c.Database.Driver = "sqlite" }, "DATABASE_URL"},
		{"zero batch", func(c *Config) { c.Upload.BatchSize = 0 }, "UPLOAD_BATCH_SIZE"},
		{"extension without dot", func(c *Config) { c.Upload.AllowedExtensions = []string{"csv"} }, "must start with a dot"},
		{"page sizes inverted", func(c *Config) { c.Results.MaxPageSize = 10 }, "RESULTS_MAX_PAGE_SIZE"},
		{"bad metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "METRICS_PATH"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Upload.BatchSize = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "UPLOAD_BATCH_SIZE", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = "postgres://user:secret@db/natijti"
	cfg.Cache.RedisURL = "redis://:hunter2@cache:6379"

	s := cfg.String()
	if strings.Contains(s, "secret") || strings.Contains(s, "hunter2") {
		t.Errorf("String() leaked credentials: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked URL", s)
	}
}

func TestServerAddr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := c.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8081")
	}
	c.Host = ""
	if got := c.Addr(); got != ":8081" {
		t.Errorf("Addr() = %q, want %q", got, ":8081")
	}
}
