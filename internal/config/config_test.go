package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 38800 {
		t.Errorf("port = %d, want 38800", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Notes.DefaultDecayMinutes != 1440 || cfg.Notes.SweepIntervalMinutes != 5 {
		t.Errorf("notes defaults = %+v", cfg.Notes)
	}
	if cfg.ListenAddr() != "127.0.0.1:38800" {
		t.Errorf("listen addr = %s", cfg.ListenAddr())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 38800 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  bind: 0.0.0.0
  port: 9000
llm:
  provider: ollama
  ollama_url: http://localhost:11434
  ollama_model: llama3
notes:
  default_decay_minutes: 720
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9000" {
		t.Errorf("listen addr = %s", cfg.ListenAddr())
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.OllamaModel != "llama3" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Notes.DefaultDecayMinutes != 720 {
		t.Errorf("default decay = %d", cfg.Notes.DefaultDecayMinutes)
	}
	// Unset fields keep their defaults.
	if cfg.LLM.TimeoutSeconds != 30 || cfg.Notes.SweepIntervalMinutes != 5 {
		t.Errorf("defaults lost: %+v / %+v", cfg.LLM, cfg.Notes)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server: [not a map"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.GeminiKey != "g-key" || cfg.LLM.AnthropicKey != "a-key" {
		t.Errorf("keys = %+v", cfg.LLM)
	}
	// Gemini key present: provider stays gemini.
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %s, want gemini", cfg.LLM.Provider)
	}
}

func TestEnvProviderSwitch(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider = %s, want anthropic", cfg.LLM.Provider)
	}
}
