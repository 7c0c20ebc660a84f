package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"character-chat/internal/gateway"
	"character-chat/internal/narrator"
)

// Config holds all application configuration. Endpoint chains and narrator
// tunables start from the built-in defaults and may be overridden by an
// optional providers.yaml in the settings directory.
type Config struct {
	Port        string
	DBPath      string
	StaticDir   string
	SettingsDir string

	TextEndpoints  []gateway.Endpoint
	ImageEndpoints []gateway.Endpoint
	Narrator       narrator.Config
}

// fileConfig is the providers.yaml schema. Tunables are pointers so that an
// explicit zero can be distinguished from an omitted key.
type fileConfig struct {
	TextEndpoints  []gateway.Endpoint `yaml:"text_endpoints"`
	ImageEndpoints []gateway.Endpoint `yaml:"image_endpoints"`
	Narrator       struct {
		OpeningChance    *float64 `yaml:"opening_chance"`
		BracketChance    *float64 `yaml:"bracket_chance"`
		CharacterPauseMS *int     `yaml:"character_pause_ms"`
	} `yaml:"narrator"`
}

// Load loads configuration from environment and the optional providers file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		DBPath:         getEnvOrDefault("DB_PATH", "data/app.db"),
		StaticDir:      getEnvOrDefault("STATIC_DIR", "static"),
		SettingsDir:    getEnvOrDefault("SETTINGS_DIR", "settings"),
		TextEndpoints:  gateway.DefaultTextEndpoints(),
		ImageEndpoints: gateway.DefaultImageEndpoints(),
		Narrator:       narrator.DefaultConfig(),
	}

	path := filepath.Join(cfg.SettingsDir, "providers.yaml")
	if err := cfg.applyFile(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays providers.yaml onto the defaults. A missing file is
// reported as os.ErrNotExist and treated as "use defaults" by Load.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if len(fc.TextEndpoints) > 0 {
		c.TextEndpoints = fc.TextEndpoints
	}
	if len(fc.ImageEndpoints) > 0 {
		c.ImageEndpoints = fc.ImageEndpoints
	}
	if fc.Narrator.OpeningChance != nil {
		c.Narrator.OpeningChance = *fc.Narrator.OpeningChance
	}
	if fc.Narrator.BracketChance != nil {
		c.Narrator.BracketChance = *fc.Narrator.BracketChance
	}
	if fc.Narrator.CharacterPauseMS != nil {
		c.Narrator.CharacterPause = time.Duration(*fc.Narrator.CharacterPauseMS) * time.Millisecond
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
