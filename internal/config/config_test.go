package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if cfg.Cache.Capacity != 512 {
		t.Errorf("cache capacity = %d, want 512", cfg.Cache.Capacity)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TABLEWISE_MODEL", "")
	t.Setenv("TABLEWISE_ADDR", "")
	t.Setenv("TABLEWISE_CACHE_SEED", "")

	path := filepath.Join(t.TempDir(), "tablewise.yaml")
	body := `
llm:
  provider: mock
  model: test-model
  timeout: 5s
cache:
  capacity: 16
  max_variants: 2
  seed: 7
server:
  addr: ":9999"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "mock" || cfg.LLM.Model != "test-model" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Cache.Capacity != 16 || cfg.Cache.MaxVariants != 2 || cfg.Cache.Seed != 7 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if got := cfg.GetLLMTimeout(); got != 5*time.Second {
		t.Errorf("timeout = %v", got)
	}

	// Unset fields keep defaults.
	if cfg.Store.AnalyticsPath != "data/analytics.db" {
		t.Errorf("analytics path = %q", cfg.Store.AnalyticsPath)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("llm: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TABLEWISE_MODEL", "env-model")
	t.Setenv("TABLEWISE_ADDR", ":7070")
	t.Setenv("TABLEWISE_CACHE_SEED", "99")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Provider != "openai" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Cache.Seed != 99 {
		t.Errorf("seed = %d", cfg.Cache.Seed)
	}
}

func TestGetLLMTimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not-a-duration"
	if got := cfg.GetLLMTimeout(); got != 60*time.Second {
		t.Errorf("timeout = %v, want 60s fallback", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tablewise.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":5050"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Addr != ":5050" {
		t.Errorf("addr = %q", loaded.Server.Addr)
	}
}
