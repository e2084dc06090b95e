package config

import (
	"slices"
	"testing"
)

func TestParseMap_Defaults(t *testing.T) {
	cfg, err := ParseMap(map[string]string{})
	if err != nil {
		t.Fatalf("ParseMap failed: %v", err)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("backend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("port = %q, want 8080", cfg.ServerPort)
	}
	if cfg.Ledger.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Ledger.MaxAttempts)
	}
	if cfg.Redis.Prefix != "inv:" {
		t.Errorf("redis prefix = %q, want inv:", cfg.Redis.Prefix)
	}
	if cfg.IsProduction() {
		t.Errorf("default env should not be production")
	}
}

func TestParseMap_RejectsBadBackend(t *testing.T) {
	if _, err := ParseMap(map[string]string{"STORE_BACKEND": "mongo"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
	if _, err := ParseMap(map[string]string{"LEDGER_MAX_ATTEMPTS": "many"}); err == nil {
		t.Errorf("expected error for non-numeric attempts")
	}
}

func TestParse_NestedAndLists(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "7")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("APP_ENV", "production")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.StoreBackend != BackendRedis {
		t.Errorf("backend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Ledger.MaxAttempts != 7 {
		t.Errorf("max attempts = %d, want 7", cfg.Ledger.MaxAttempts)
	}
	if !slices.Equal(cfg.AllowedOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if !cfg.IsProduction() {
		t.Errorf("APP_ENV=production should be production")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		expectErr bool
	}{
		{"memory", Config{StoreBackend: BackendMemory, Ledger: LedgerConfig{MaxAttempts: 1}}, false},
		{"postgres without url", Config{StoreBackend: BackendPostgres, Ledger: LedgerConfig{MaxAttempts: 3}}, true},
		{"postgres with url", Config{StoreBackend: BackendPostgres, DatabaseURL: "postgres://x", Ledger: LedgerConfig{MaxAttempts: 3}}, false},
		{"unknown backend", Config{StoreBackend: "mongo", Ledger: LedgerConfig{MaxAttempts: 3}}, true},
		{"zero attempts", Config{StoreBackend: BackendMemory}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.expectErr {
				t.Errorf("Validate() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}
