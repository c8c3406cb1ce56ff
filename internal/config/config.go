// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	Listen      string `json:"listen"`
	SeedPrompts bool   `json:"seed_prompts"`
	Agent       struct {
		WSURL            string `json:"ws_url"`
		MetricsURL       string `json:"metrics_url"`
		ReconnectSeconds int    `json:"reconnect_seconds"`
	} `json:"agent"`
	Metrics struct {
		PollSeconds int `json:"poll_seconds"`
	} `json:"metrics"`
	Auth struct {
		SecureCookies bool `json:"secure_cookies"`
	} `json:"auth"`
	SimAgent struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"sim_agent"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:     filepath.Join(os.Getenv("HOME"), ".agentdeck"),
		LogLevel:    "info",
		Listen:      ":8090",
		SeedPrompts: true,
	}
	cfg.Agent.WSURL = "ws://localhost:8080"
	cfg.Agent.MetricsURL = "http://localhost:8080/metrics"
	cfg.Agent.ReconnectSeconds = 3
	cfg.Metrics.PollSeconds = 5
	cfg.SimAgent.Listen = ":8080"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if wsURL := os.Getenv("AGENT_WS_URL"); wsURL != "" {
		cfg.Agent.WSURL = wsURL
	}
	if serviceURL := os.Getenv("AGENT_SERVICE_URL"); serviceURL != "" {
		cfg.Agent.MetricsURL = serviceURL + "/metrics"
	}
	if listen := os.Getenv("AGENTDECK_LISTEN"); listen != "" {
		cfg.Listen = listen
	}

	return cfg, nil
}

// Save writes the config using atomic write (temp file + rename).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config into a nested map via its JSON encoding.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns all config values keyed by dot-separated path.
func ListValues(cfg *Config) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	return Flatten(m), nil
}

// GetValue loads the config at path and returns the value for the given
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	values, err := ListValues(cfg)
	if err != nil {
		return nil, err
	}
	val, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue loads the config at path, sets the dot-separated key to value
// (coercing bools and numbers), and saves it back.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	values, err := ListValues(cfg)
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	values[key] = Coerce(value)

	nested := Unflatten(values)
	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return Save(path, updated)
}
