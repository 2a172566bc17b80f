package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tableclient.hcl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "ws://localhost:8080/ws" {
		t.Errorf("Expected default URL, got %q", cfg.Server.URL)
	}
	if cfg.Media.MaxWidth != 640 || cfg.Media.MaxHeight != 480 {
		t.Errorf("Expected default capture bounds, got %dx%d", cfg.Media.MaxWidth, cfg.Media.MaxHeight)
	}
	if cfg.UI.LogLevel != "warn" {
		t.Errorf("Expected default log level warn, got %q", cfg.UI.LogLevel)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  url             = "wss://poker.example.com/ws"
  connect_timeout = 5
}

player {
  name = "alice"
}

media {
  video      = true
  audio      = false
  max_width  = 1280
  max_height = 720
}

rtc {
  stun_servers = ["stun:stun.example.com:3478"]
}

ui {
  log_level = "debug"
  log_file  = "client.log"
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "wss://poker.example.com/ws" {
		t.Errorf("Expected configured URL, got %q", cfg.Server.URL)
	}
	if cfg.Player.Name != "alice" {
		t.Errorf("Expected player alice, got %q", cfg.Player.Name)
	}
	if !cfg.Media.VideoEnabled() || cfg.Media.AudioEnabled() {
		t.Errorf("Media flags wrong: %+v", cfg.Media)
	}
	if cfg.Media.MaxWidth != 1280 {
		t.Errorf("Expected max width 1280, got %d", cfg.Media.MaxWidth)
	}
	if len(cfg.RTC.STUNServers) != 1 || cfg.RTC.STUNServers[0] != "stun:stun.example.com:3478" {
		t.Errorf("STUN servers wrong: %v", cfg.RTC.STUNServers)
	}
	if cfg.UI.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.UI.LogLevel)
	}
}

func TestLoadFillsOmittedFields(t *testing.T) {
	path := writeConfig(t, `
server {
  url = "ws://localhost:9000/ws"
}

player {
  name = "bob"
}

media {}

rtc {}

ui {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ConnectTimeout != 10 {
		t.Errorf("Expected default timeout, got %d", cfg.Server.ConnectTimeout)
	}
	if len(cfg.RTC.STUNServers) == 0 {
		t.Error("Expected default STUN server")
	}
	if cfg.UI.LogFile != "tableclient.log" {
		t.Errorf("Expected default log file, got %q", cfg.UI.LogFile)
	}
	if !cfg.Media.VideoEnabled() || !cfg.Media.AudioEnabled() {
		t.Errorf("Omitted media attributes must keep capture enabled: %+v", cfg.Media)
	}
}

func TestLoadExplicitMediaOff(t *testing.T) {
	path := writeConfig(t, `
server {
  url = "ws://localhost:9000/ws"
}

player {
  name = "bob"
}

media {
  video = false
  audio = false
}

rtc {}

ui {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Media.VideoEnabled() || cfg.Media.AudioEnabled() {
		t.Errorf("Explicit false must stay false: %+v", cfg.Media)
	}
}

func TestLoadBadSyntax(t *testing.T) {
	path := writeConfig(t, `server { url = `)
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Player.Name = "alice"
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}

	noName := Default()
	if err := noName.Validate(); err == nil {
		t.Error("Expected error for missing player name")
	}

	badLevel := Default()
	badLevel.Player.Name = "alice"
	badLevel.UI.LogLevel = "verbose"
	if err := badLevel.Validate(); err == nil {
		t.Error("Expected error for bad log level")
	}

	badTimeout := Default()
	badTimeout.Player.Name = "alice"
	badTimeout.Server.ConnectTimeout = -1
	if err := badTimeout.Validate(); err == nil {
		t.Error("Expected error for negative timeout")
	}
}
