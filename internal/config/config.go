package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	cfgMux  sync.RWMutex
	Console *ConsoleCfg
	Version = "dev"
)

const configPath = "config.yaml"

type ConsoleCfg struct {
	Debug struct {
		Log bool `yaml:"log"`
	} `yaml:"debug"`
	HTTPPort         int    `yaml:"httpPort"`
	DataDirectory    string `yaml:"dataDirectory"`
	LogSaveDirectory string `yaml:"logSaveDirectory"`
	// Delay between consecutive connection attempts when connecting every
	// account at once, to avoid hammering the target server.
	ConnectAllStaggerSeconds int `yaml:"connectAllStaggerSeconds"`
	Discord                  struct {
		Enabled   bool     `yaml:"enabled"`
		Token     string   `yaml:"token"`
		ChannelID string   `yaml:"channelId"`
		BotAdmins []string `yaml:"botAdmins"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`
	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`
}

func defaultConfig() *ConsoleCfg {
	cfg := &ConsoleCfg{}
	cfg.HTTPPort = 1043
	cfg.DataDirectory = "data"
	cfg.LogSaveDirectory = "logs"
	cfg.ConnectAllStaggerSeconds = 2
	return cfg
}

// Load reads config.yaml from the working directory, creating it with
// defaults on first run.
func Load() error {
	cfgMux.Lock()
	defer cfgMux.Unlock()

	r, err := os.Open(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		Console = defaultConfig()
		return saveLocked(*Console)
	}
	if err != nil {
		return fmt.Errorf("error loading %s: %w", configPath, err)
	}
	defer r.Close()

	cfg := defaultConfig()
	d := yaml.NewDecoder(r)
	if err = d.Decode(cfg); err != nil {
		return fmt.Errorf("error reading config %s: %w", configPath, err)
	}

	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = 1043
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = "data"
	}
	if cfg.ConnectAllStaggerSeconds <= 0 {
		cfg.ConnectAllStaggerSeconds = 2
	}

	Console = cfg
	return nil
}

// ValidateAndSaveConfig persists the given config and makes it the active one.
func ValidateAndSaveConfig(cfg ConsoleCfg) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", cfg.HTTPPort)
	}

	cfgMux.Lock()
	defer cfgMux.Unlock()
	Console = &cfg
	return saveLocked(cfg)
}

func saveLocked(cfg ConsoleCfg) error {
	text, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, text, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", configPath, err)
	}

	return nil
}
