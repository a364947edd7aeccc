package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings file schema.
type Settings struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// Credentials resolves the OpenAI API key in precedence order: a key
// set at runtime wins over the OPENAI_API_KEY environment variable,
// which wins over the settings file.
type Credentials struct {
	filePath string

	mu       sync.RWMutex
	override string

	loadFile sync.Once
	fileKey  string
}

func NewCredentials(settingsFile string) *Credentials {
	return &Credentials{filePath: settingsFile}
}

// APIKey returns the effective key, or "" when none is configured.
func (c *Credentials) APIKey() string {
	c.mu.RLock()
	override := c.override
	c.mu.RUnlock()
	if override != "" {
		return override
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key
	}
	return c.settingsFileKey()
}

// Source names where the effective key comes from: "runtime", "env",
// "file" or "" when unset.
func (c *Credentials) Source() string {
	c.mu.RLock()
	override := c.override
	c.mu.RUnlock()
	if override != "" {
		return "runtime"
	}
	if strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" {
		return "env"
	}
	if c.settingsFileKey() != "" {
		return "file"
	}
	return ""
}

// SetOverride installs or clears the runtime key.
func (c *Credentials) SetOverride(key string) {
	c.mu.Lock()
	c.override = strings.TrimSpace(key)
	c.mu.Unlock()
}

func (c *Credentials) settingsFileKey() string {
	c.loadFile.Do(func() {
		settings, err := LoadSettingsFile(c.filePath)
		if err != nil {
			return
		}
		c.fileKey = settings.OpenAIAPIKey
	})
	return c.fileKey
}

// LoadSettingsFile reads the YAML settings file. A missing file is
// not an error; it yields empty settings.
func LoadSettingsFile(path string) (Settings, error) {
	if path == "" {
		return Settings{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	var settings Settings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	settings.OpenAIAPIKey = strings.TrimSpace(settings.OpenAIAPIKey)
	return settings, nil
}
