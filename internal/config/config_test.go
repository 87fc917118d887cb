package config

import (
	"os"
	"testing"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want default", cfg.Model)
	}
	if cfg.DB.Vector.Backend != "memory" {
		t.Errorf("DB.Vector.Backend = %q, want memory", cfg.DB.Vector.Backend)
	}
	if cfg.DB.Graph.DSN != ":memory:" {
		t.Errorf("DB.Graph.DSN = %q, want :memory: for the default memory backend", cfg.DB.Graph.DSN)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled should default to false")
	}
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	if _, err := Load("/nonexistent/path/rookd.yaml"); err != nil {
		t.Fatalf("Load should tolerate a missing config file, got: %v", err)
	}
}

func TestApplyEnvOverlay_ModelAndRedis(t *testing.T) {
	t.Setenv("ROOK_MODEL", "gpt-4.1-mini")
	t.Setenv("ROOK_REDIS_ENABLED", "true")
	t.Setenv("ROOK_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gpt-4.1-mini" {
		t.Errorf("Model = %q, want env override", cfg.Model)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled should be true from ROOK_REDIS_ENABLED")
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want env override", cfg.Redis.Addr)
	}
}

func TestApplyDefaults_NonMemoryGraphBackendGetsFileDSN(t *testing.T) {
	path := t.TempDir() + "/rookd.yaml"
	data := "db:\n  graph:\n    backend: sqlite\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Graph.DSN != "rook_graph.db" {
		t.Errorf("DB.Graph.DSN = %q, want rook_graph.db", cfg.DB.Graph.DSN)
	}
}
