package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Storage.Type != "local" {
		t.Errorf("Storage.Type = %q, want local", cfg.Storage.Type)
	}
	if cfg.Matcher.TopK != 5 || cfg.Matcher.MaxTopK != 50 {
		t.Errorf("Matcher = %+v, want top_k 5, max_top_k 50", cfg.Matcher)
	}
	if cfg.Upload.ImageSize != 448 || cfg.Upload.MaxSizeMB != 10 {
		t.Errorf("Upload = %+v, want image_size 448, max_size_mb 10", cfg.Upload)
	}
	if cfg.Index.Enabled {
		t.Error("Index.Enabled = true, want false by default")
	}
	if cfg.Index.VectorDim != 768 {
		t.Errorf("Index.VectorDim = %d, want 768", cfg.Index.VectorDim)
	}
	if cfg.Models.Vision.Timeout != 30*time.Second {
		t.Errorf("Models.Vision.Timeout = %v, want 30s", cfg.Models.Vision.Timeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
  mode: release
matcher:
  top_k: 3
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("Server.Mode = %q, want release", cfg.Server.Mode)
	}
	if cfg.Matcher.TopK != 3 {
		t.Errorf("Matcher.TopK = %d, want 3", cfg.Matcher.TopK)
	}
	// untouched keys keep their defaults
	if cfg.Matcher.MaxTopK != 50 {
		t.Errorf("Matcher.MaxTopK = %d, want 50", cfg.Matcher.MaxTopK)
	}
}

func TestDatabaseDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/app.db"}
	if got := sqlite.DSN(); got != "./data/app.db" {
		t.Errorf("sqlite DSN = %q", got)
	}

	pg := DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432,
		User: "app", Password: "secret", Name: "refind", SSLMode: "disable",
	}
	want := "host=db port=5432 user=app password=secret dbname=refind sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("postgres DSN = %q, want %q", got, want)
	}
}
