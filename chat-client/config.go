package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultServerURL can be overridden at build time:
//
//	go build -ldflags "-X main.defaultServerURL=wss://chat.example.com/ws"
var defaultServerURL = "ws://127.0.0.1:8080/ws"

type config struct {
	ServerURL    string        `yaml:"server_url"`
	Name         string        `yaml:"name"`
	AutoConnect  bool          `yaml:"auto_connect"`
	BridgeAddr   string        `yaml:"bridge_addr"`
	Headless     bool          `yaml:"headless"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	LogLevel     string        `yaml:"log_level"`
	LogFile      string        `yaml:"log_file"`
}

func defaultConfig() config {
	return config{
		ServerURL:    defaultServerURL,
		AutoConnect:  true,
		DialTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
		LogLevel:     "info",
	}
}

// loadConfigFile overlays the YAML file at path onto cfg.
func loadConfigFile(path string, cfg *config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url is empty; set --server-url or %s", envServerURL)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %s", c.DialTimeout)
	}
	if c.Headless && c.BridgeAddr == "" {
		return fmt.Errorf("headless mode needs --bridge-addr")
	}
	return nil
}
