package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("OBSREC_CHANNEL_ID", "3239123608")
	t.Setenv("OBSREC_OBS_HOST", "obs.lan")
	t.Setenv("OBSREC_OBS_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ChannelID != 3239123608 {
		t.Fatalf("unexpected channel id: %d", cfg.ChannelID)
	}
	if cfg.OBSAddress() != "obs.lan:4455" {
		t.Fatalf("unexpected obs address: %q", cfg.OBSAddress())
	}
	if cfg.Margins != DefaultMargins() {
		t.Fatalf("expected default margins, got %+v", cfg.Margins)
	}
}

func TestLoadRequiresChannelID(t *testing.T) {
	t.Setenv("OBSREC_CHANNEL_ID", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without a channel id")
	}

	t.Setenv("OBSREC_CHANNEL_ID", "-4")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail with a negative channel id")
	}
}

func TestLoadAcceptsLegacyKeysWithWarnings(t *testing.T) {
	t.Setenv("OBSREC_CHANNEL_ID", "1")
	t.Setenv("HOST_NAME", "192.168.1.20")
	t.Setenv("PORT", "4444")
	t.Setenv("PASSWORD", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OBSHost != "192.168.1.20" || cfg.OBSPort != 4444 || cfg.OBSPassword != "legacy" {
		t.Fatalf("legacy keys not applied: %+v", cfg)
	}
	if len(cfg.LegacyEnvWarnings) != 3 {
		t.Fatalf("expected 3 legacy env warnings, got %v", cfg.LegacyEnvWarnings)
	}
}

func TestLoadMarginOverrides(t *testing.T) {
	t.Setenv("OBSREC_CHANNEL_ID", "1")
	t.Setenv("OBSREC_LEAD_IN", "30s")
	t.Setenv("OBSREC_COOLDOWN", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Margins.LeadIn != 30*time.Second {
		t.Errorf("lead in = %s, want 30s", cfg.Margins.LeadIn)
	}
	if cfg.Margins.Cooldown != 2*time.Second {
		t.Errorf("cooldown = %s, want 2s", cfg.Margins.Cooldown)
	}
}

func TestValidateRejectsBadMargins(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lead in", func(c *Config) { c.Margins.LeadIn = 0 }},
		{"negative early stop", func(c *Config) { c.Margins.EarlyStop = -time.Second }},
		{"defer threshold below idle interval", func(c *Config) { c.Margins.DeferThreshold = time.Minute }},
		{"port out of range", func(c *Config) { c.OBSPort = 70000 }},
		{"unknown journal backend", func(c *Config) { c.JournalDSN = "x"; c.JournalBackend = "oracle" }},
		{"sample rate above one", func(c *Config) { c.TracingSampleRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.ChannelID = 1
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadFileOverlayWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obsrec.yaml")
	content := `
channel_id: 42
obs_host: studio
obs_scene: Capture Board
status_bind: ""
margins:
  lead_in: 20s
  early_stop: 10s
  end_guard: 10s
  cooldown: 5s
  idle_interval: 1h
  defer_threshold: 1h10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("OBSREC_OBS_HOST", "override")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config file: %v", err)
	}
	if cfg.ChannelID != 42 {
		t.Errorf("channel id = %d, want 42", cfg.ChannelID)
	}
	if cfg.OBSHost != "override" {
		t.Errorf("obs host = %q, want env override", cfg.OBSHost)
	}
	if cfg.OBSScene != "Capture Board" {
		t.Errorf("obs scene = %q", cfg.OBSScene)
	}
	if cfg.StatusBind != "" {
		t.Errorf("status bind = %q, want disabled", cfg.StatusBind)
	}
	if cfg.Margins.LeadIn != 20*time.Second || cfg.Margins.DeferThreshold != time.Hour+10*time.Second {
		t.Errorf("margins not read from file: %+v", cfg.Margins)
	}
	if cfg.ConfigFile != path {
		t.Errorf("config file = %q", cfg.ConfigFile)
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("OBSREC_CHANNEL_ID", "1")
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
