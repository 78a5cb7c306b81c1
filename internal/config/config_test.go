package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if got := cfg.AbuseDetectorConfig(); got.MLThreshold != 0.7 || !got.SemanticEnabled {
		t.Errorf("abuse defaults not applied: %+v", got)
	}
	if got := cfg.SimilarityCheckerConfig(); got.DefaultThreshold != 0.85 {
		t.Errorf("similarity defaults not applied: %+v", got)
	}
	if got := cfg.LengthOptions(); got.MaxLength != 100_000 {
		t.Errorf("length defaults not applied: %+v", got)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptgate.yaml")
	data := []byte(`
server:
  addr: ":9090"
abuse:
  ml_threshold: 0.6
  semantic: false
length:
  max_tokens: 32000
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}

	ac := cfg.AbuseDetectorConfig()
	if ac.MLThreshold != 0.6 {
		t.Errorf("ml threshold = %v", ac.MLThreshold)
	}
	if ac.SemanticEnabled {
		t.Error("semantic: false must disable the semantic check")
	}
	if ac.BlockThreshold != 0.8 {
		t.Errorf("untouched fields must keep defaults, got %v", ac.BlockThreshold)
	}

	lo := cfg.LengthOptions()
	if lo.MaxTokens != 32_000 || lo.MaxLength != 100_000 {
		t.Errorf("length overlay wrong: %+v", lo)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
