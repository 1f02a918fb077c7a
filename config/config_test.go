package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Http.Port != 8080 {
		t.Fatalf("expected default port, got %d", c.Http.Port)
	}
	if c.Cache.Backend != "lru" || c.ML.PositiveClass != 1 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  port: 9090
  timeout: 5s
log:
  level: debug
ml:
  artifact_dir: /srv/models
  model_type: decision_tree
  watch: true
cache:
  backend: none
database:
  path: predictions.db
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Http.Port != 9090 || c.Http.Timeout != 5*time.Second {
		t.Fatalf("unexpected http config: %+v", c.Http)
	}
	if c.ML.ArtifactDir != "/srv/models" || c.ML.ModelType != "decision_tree" || !c.ML.Watch {
		t.Fatalf("unexpected ml config: %+v", c.ML)
	}
	// untouched keys keep their defaults
	if c.ML.PositiveClass != 1 || c.Http.RateLimit.Window != time.Minute {
		t.Fatalf("defaults lost: %+v", c)
	}
	if c.Database.Path != "predictions.db" {
		t.Fatalf("unexpected database path %q", c.Database.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("XENTE_HTTP_PORT", "7070")
	t.Setenv("XENTE_CACHE_BACKEND", "redis")
	t.Setenv("XENTE_REDIS_ADDR", "localhost:6379")
	t.Setenv("XENTE_ML_WATCH", "true")

	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Http.Port != 7070 || c.Cache.Backend != "redis" || c.Cache.Redis.Addr != "localhost:6379" || !c.ML.Watch {
		t.Fatalf("env overrides not applied: %+v", c)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "http: [",
		"bad port":         "http:\n  port: 70000\n",
		"negative port":    "http:\n  port: -1\n",
		"bad backend":      "cache:\n  backend: memcached\n",
		"redis no addr":    "cache:\n  backend: redis\n",
		"lru without size": "cache:\n  backend: lru\n  size: 0\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateAcceptsPortZero(t *testing.T) {
	c := Default()
	c.Http.Port = 0
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("XENTE_HTTP_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}
