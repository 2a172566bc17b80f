// Package config loads the client configuration from an HCL file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete client configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Player PlayerSettings `hcl:"player,block"`
	Media  MediaSettings  `hcl:"media,block"`
	RTC    RTCSettings    `hcl:"rtc,block"`
	UI     UISettings     `hcl:"ui,block"`
}

// ServerSettings configures the websocket connection.
type ServerSettings struct {
	URL            string `hcl:"url"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"`
}

// PlayerSettings holds identity settings.
type PlayerSettings struct {
	Name string `hcl:"name"`
}

// MediaSettings bounds local capture. Video and Audio are pointers so an
// attribute left out of the file falls back to the default instead of
// reading as false.
type MediaSettings struct {
	Video     *bool `hcl:"video,optional"`
	Audio     *bool `hcl:"audio,optional"`
	MaxWidth  int   `hcl:"max_width,optional"`
	MaxHeight int   `hcl:"max_height,optional"`
}

// VideoEnabled reports whether video capture is on; absence means on.
func (m MediaSettings) VideoEnabled() bool { return m.Video == nil || *m.Video }

// AudioEnabled reports whether audio capture is on; absence means on.
func (m MediaSettings) AudioEnabled() bool { return m.Audio == nil || *m.Audio }

// RTCSettings configures ICE for peer connections.
type RTCSettings struct {
	STUNServers []string `hcl:"stun_servers,optional"`
}

// UISettings contains interface settings.
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			URL:            "ws://localhost:8080/ws",
			ConnectTimeout: 10,
		},
		Media: MediaSettings{
			Video:     boolPtr(true),
			Audio:     boolPtr(true),
			MaxWidth:  640,
			MaxHeight: 480,
		},
		RTC: RTCSettings{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "tableclient.log",
		},
	}
}

// Load reads an HCL config file, falling back to defaults when the file
// does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}

	defaults := Default()
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.ConnectTimeout == 0 {
		cfg.Server.ConnectTimeout = defaults.Server.ConnectTimeout
	}
	if cfg.Media.Video == nil {
		cfg.Media.Video = defaults.Media.Video
	}
	if cfg.Media.Audio == nil {
		cfg.Media.Audio = defaults.Media.Audio
	}
	if cfg.Media.MaxWidth == 0 {
		cfg.Media.MaxWidth = defaults.Media.MaxWidth
	}
	if cfg.Media.MaxHeight == 0 {
		cfg.Media.MaxHeight = defaults.Media.MaxHeight
	}
	if len(cfg.RTC.STUNServers) == 0 {
		cfg.RTC.STUNServers = defaults.RTC.STUNServers
	}
	if cfg.UI.LogLevel == "" {
		cfg.UI.LogLevel = defaults.UI.LogLevel
	}
	if cfg.UI.LogFile == "" {
		cfg.UI.LogFile = defaults.UI.LogFile
	}

	return &cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Player.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	return nil
}

func boolPtr(b bool) *bool { return &b }
