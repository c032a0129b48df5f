package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.BlobBackend != "fs" {
		t.Errorf("BlobBackend = %q, want fs", cfg.BlobBackend)
	}
	if cfg.ImageMaxEntries != 500 {
		t.Errorf("ImageMaxEntries = %d, want 500", cfg.ImageMaxEntries)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if !cfg.LogPretty {
		t.Error("LogPretty should be true")
	}
}

func TestLoad_RejectsUnknownBlobBackend(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "ftp")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown blob backend")
	}
}
