package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/crewcall/crewcall/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewcall.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
token = "bot-token"
living_channel = "111"
dead_channel = "222"
`

func TestLoadAppliesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Prefix != "~" {
		t.Fatalf("unexpected default prefix: %q", cfg.Prefix)
	}
	if cfg.StartDelay() != 5*time.Second || cfg.SettleDelay() != 5*time.Second {
		t.Fatalf("unexpected default delays: %v %v", cfg.StartDelay(), cfg.SettleDelay())
	}
	if cfg.Capture.Addr != ":8123" {
		t.Fatalf("unexpected default capture addr: %q", cfg.Capture.Addr)
	}
}

func TestLoadFullConfig(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, `
token = "bot-token"
prefix = "!"
living_channel = "111"
dead_channel = "222"
spectator_role = "333"
owners = ["1", "2"]
deafen_muted = true
start_delay_seconds = 7
settle_delay_seconds = 3

[capture]
enabled = true
addr = ":9000"
auth_token = "sekrit"
connect_code = "code-1234"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Prefix != "!" || !cfg.DeafenMuted || len(cfg.Owners) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StartDelay() != 7*time.Second || cfg.SettleDelay() != 3*time.Second {
		t.Fatalf("unexpected delays: %v %v", cfg.StartDelay(), cfg.SettleDelay())
	}
	if !cfg.Capture.Enabled || cfg.Capture.Addr != ":9000" || cfg.Capture.ConnectCode != "code-1234" {
		t.Fatalf("unexpected capture config: %+v", cfg.Capture)
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWriteTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "crewcall.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected clobber refusal, got %v", err)
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("template is not valid toml: %v", err)
	}
	if cfg.Prefix != "~" || cfg.Capture.Addr != ":8123" {
		t.Fatalf("unexpected template contents: %+v", cfg)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing token",
			`living_channel = "111"` + "\n" + `dead_channel = "222"`,
			"missing token",
		},
		{
			"missing living channel",
			`token = "x"` + "\n" + `dead_channel = "222"`,
			"missing living_channel",
		},
		{
			"same channels",
			`token = "x"` + "\n" + `living_channel = "111"` + "\n" + `dead_channel = "111"`,
			"must differ",
		},
		{
			"capture without token",
			minimalConfig + "\n[capture]\nenabled = true",
			"auth_token",
		},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.content))
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.wantErr, err)
		}
	}
}
