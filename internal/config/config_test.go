package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "wristreminder.db" {
		t.Errorf("Unexpected db defaults: %+v", cfg.DB)
	}
	if cfg.Sync.Timeout != 30*time.Second || cfg.Alarm.Tick != time.Second {
		t.Errorf("Unexpected duration defaults: sync %v, tick %v", cfg.Sync.Timeout, cfg.Alarm.Tick)
	}
	if !cfg.Alarm.ExactPermission {
		t.Error("Expected exact alarms to be permitted by default")
	}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Errorf("Expected the local zone, got %v, %v", loc, err)
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
timezone: Europe/Dublin
db:
  dsn: file.db
log:
  level: debug
sync:
  timeout: 10s
  sources:
    - name: work
      type: ics
      url: https://example.com/work.ics
      token: abc
    - name: family
      type: git
      url: https://example.com/family.git
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("WRISTREMINDER_DB__DSN", "env.db")
	t.Setenv("WRISTREMINDER_SYNC__TIMEOUT", "45s")
	t.Setenv("WRISTREMINDER_WEB__LISTEN", ":9000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--listen", ":7000"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	testCases := []struct {
		name     string
		got      any
		expected any
	}{
		{"file value", cfg.Timezone, "Europe/Dublin"},
		{"file value kept", cfg.Log.Level, "debug"},
		{"env over file", cfg.DB.DSN, "env.db"},
		{"env duration", cfg.Sync.Timeout, 45 * time.Second},
		{"flag over env", cfg.Web.Listen, ":7000"},
		{"unchanged flag keeps default", cfg.DB.Driver, "sqlite"},
		{"source count", len(cfg.Sync.Sources), 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, tc.got)
			}
		})
	}

	if cfg.Sync.Sources[0].Token != "abc" || cfg.Sync.Sources[1].Type != "git" {
		t.Errorf("Unexpected sources %+v", cfg.Sync.Sources)
	}
}

func TestLoadWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if _, err := Load(path, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected the default config to be written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Reloading the written config failed: %v", err)
	}
	if cfg.Sync.Lookback != 365*24*time.Hour {
		t.Errorf("Expected the default lookback after round trip, got %v", cfg.Sync.Lookback)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"WRISTREMINDER_DB__DRIVER": "mysql"}},
		{"unknown timezone", map[string]string{"WRISTREMINDER_TIMEZONE": "Mars/Olympus_Mons"}},
		{"bad log level", map[string]string{"WRISTREMINDER_LOG__LEVEL": "loud"}},
		{"telegram token without chat", map[string]string{"WRISTREMINDER_TELEGRAM__TOKEN": "123:abc"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load("", nil); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}
