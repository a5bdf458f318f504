package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":5555" || cfg.MaxServices != 64 || cfg.MaxSessions != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.FsyncOnFlush || !cfg.FlushOnShutdown || !cfg.UseMmap {
		t.Fatalf("durability defaults off: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.ResolvedLogDir() != filepath.Join(cfg.DataDir, "logs") {
		t.Fatalf("log dir %s", cfg.ResolvedLogDir())
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "logcache.json", `{"listenAddr":"127.0.0.1:6000","maxServices":8,"rotation":{"maxBytes":1024}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:6000" || cfg.MaxServices != 8 || cfg.Rotation.MaxBytes != 1024 {
		t.Fatalf("unexpected %+v", cfg)
	}
	if cfg.MaxSessions != 256 {
		t.Fatalf("unset field lost its default: %d", cfg.MaxSessions)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "logcache.yaml", `
listenAddr: ":7000"
logDir: /tmp/lmc-logs
fsyncOnFlush: false
rotation:
  maxAgeSeconds: 3600
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.ResolvedLogDir() != "/tmp/lmc-logs" || cfg.FsyncOnFlush {
		t.Fatalf("unexpected %+v", cfg)
	}
	if cfg.Rotation.MaxAge() != time.Hour {
		t.Fatalf("max age %v", cfg.Rotation.MaxAge())
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.json", "{")); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("LMC_LISTEN_ADDR", ":9999")
	t.Setenv("LMC_MAX_SERVICES", "3")
	t.Setenv("LMC_FSYNC_ON_FLUSH", "false")
	t.Setenv("LMC_ROTATE_MAX_BYTES", "4096")
	t.Setenv("LMC_MAX_SESSIONS", "many")
	t.Setenv("LMC_CATALOG_FSYNC", "interval")
	FromEnv(&cfg)
	if cfg.ListenAddr != ":9999" || cfg.MaxServices != 3 || cfg.FsyncOnFlush || cfg.Rotation.MaxBytes != 4096 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.MaxSessions != 256 {
		t.Fatalf("bad value should be ignored, got %d", cfg.MaxSessions)
	}
	if cfg.CatalogFsync != "interval" {
		t.Fatalf("catalog fsync %q", cfg.CatalogFsync)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxServices = 0
	cfg.PageSize = 100
	cfg.ServiceNameRegex = "("
	cfg.CatalogFsync = "sometimes"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"maxServices", "pageSize", "serviceNameRegex", "catalogFsync"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}
