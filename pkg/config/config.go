package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents spamguard configuration. It is built once at
// startup (defaults overlaid with an optional YAML file), validated,
// and then passed by value into the components that need it.
type Config struct {
	// Spam detection settings
	Detection DetectionConfig `yaml:"detection"`

	// Registered analyzers, in evaluation order
	Analyzers []AnalyzerConfig `yaml:"analyzers"`

	// Which optional platform modules are installed
	Resources ResourcesConfig `yaml:"resources"`

	// Language detection settings
	Language LanguageConfig `yaml:"language"`
}

// DetectionConfig contains verdict parameters.
type DetectionConfig struct {
	// SpamThreshold is a float in [0,1]; an aggregated score >= the
	// threshold is a spam verdict.
	SpamThreshold float64 `yaml:"spam_threshold"`

	// Aggregation combines per-analyzer scores: "mean" (weighted
	// arithmetic mean) or "max".
	Aggregation string `yaml:"aggregation"`

	// LogInputText keeps the raw text in classification log entries.
	// When false only the fingerprint is kept.
	LogInputText bool `yaml:"log_input_text"`
}

// AnalyzerConfig describes one named analyzer.
type AnalyzerConfig struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"` // "bayes" or "lua"

	// Weight scales this analyzer's score in the weighted mean. Zero
	// means unset and is treated as 1.0; negative weights are rejected.
	Weight float64 `yaml:"weight"`

	Options AnalyzerOptions `yaml:"options"`
}

// AnalyzerOptions contains strategy construction parameters.
type AnalyzerOptions struct {
	// Adapter selects the backing store: "memory" (default) or "redis"
	Adapter string `yaml:"adapter"`

	// Params configures the external store when adapter is "redis"
	Params StoreParams `yaml:"params"`

	// ScriptPath points at the script of a "lua" strategy
	ScriptPath string `yaml:"script_path"`

	// Categories seeds the classification categories
	Categories []string `yaml:"categories"`

	// Tokenization
	MinTokenLength int `yaml:"min_token_length"`
	MaxTokenLength int `yaml:"max_token_length"`

	// Laplace smoothing factor
	SmoothingFactor float64 `yaml:"smoothing_factor"`
}

// StoreParams contains external key-value store connection settings.
type StoreParams struct {
	URL       string `yaml:"url"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DB        int    `yaml:"db"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ResourcesConfig lists the optional platform modules whose content is
// trained and classified.
type ResourcesConfig struct {
	Modules []string `yaml:"modules"`
}

// LanguageConfig contains language detection settings.
type LanguageConfig struct {
	// Languages restricts detection to these ISO 639-1 codes
	Languages []string `yaml:"languages"`

	// MinTextLength is the shortest input considered detectable
	MinTextLength int `yaml:"min_text_length"`
}

// DefaultConfig returns spamguard default configuration: a single
// in-memory Bayes analyzer and a 0.75 spam threshold.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			SpamThreshold: 0.75,
			Aggregation:   "mean",
			LogInputText:  true,
		},
		Analyzers: []AnalyzerConfig{
			{
				Name:     "bayes",
				Strategy: "bayes",
				Weight:   1.0,
				Options: AnalyzerOptions{
					Adapter:         "memory",
					Categories:      []string{"ham", "spam"},
					MinTokenLength:  3,
					MaxTokenLength:  32,
					SmoothingFactor: 1.0,
					Params: StoreParams{
						KeyPrefix: "spamguard:bayes",
						TimeoutMs: 5000,
					},
				},
			},
		},
		Resources: ResourcesConfig{
			Modules: []string{"comments", "debates", "initiatives", "meetings", "proposals"},
		},
		Language: LanguageConfig{
			Languages:     []string{"en", "es", "fr", "de", "it", "pt", "ca"},
			MinTextLength: 5,
		},
	}
}

// LoadConfig loads configuration from file. An empty path returns the
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("file not found: %s", configPath)}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves configuration to file.
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration. Violations are fatal at startup.
func (c *Config) Validate() error {
	if c.Detection.SpamThreshold < 0 || c.Detection.SpamThreshold > 1 {
		return &ConfigurationError{Field: "detection.spam_threshold", Reason: "must be between 0 and 1"}
	}

	switch c.Detection.Aggregation {
	case "", "mean", "max":
	default:
		return &ConfigurationError{Field: "detection.aggregation", Reason: fmt.Sprintf("unknown method %q", c.Detection.Aggregation)}
	}

	if len(c.Analyzers) == 0 {
		return &ConfigurationError{Field: "analyzers", Reason: "at least one analyzer must be registered"}
	}

	names := make(map[string]struct{}, len(c.Analyzers))
	for i, analyzer := range c.Analyzers {
		field := fmt.Sprintf("analyzers[%d]", i)

		if analyzer.Name == "" {
			return &ConfigurationError{Field: field + ".name", Reason: "cannot be empty"}
		}
		if _, dup := names[analyzer.Name]; dup {
			return &ConfigurationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate analyzer name %q", analyzer.Name)}
		}
		names[analyzer.Name] = struct{}{}

		switch analyzer.Strategy {
		case "bayes":
		case "lua":
			if analyzer.Options.ScriptPath == "" {
				return &ConfigurationError{Field: field + ".options.script_path", Reason: "required for lua strategies"}
			}
		default:
			return &ConfigurationError{Field: field + ".strategy", Reason: fmt.Sprintf("unknown strategy %q", analyzer.Strategy)}
		}

		switch analyzer.Options.Adapter {
		case "", "memory", "redis":
		default:
			return &ConfigurationError{Field: field + ".options.adapter", Reason: fmt.Sprintf("unknown adapter %q", analyzer.Options.Adapter)}
		}

		if analyzer.Weight < 0 {
			return &ConfigurationError{Field: field + ".weight", Reason: "cannot be negative"}
		}
	}

	if c.Language.MinTextLength < 0 {
		return &ConfigurationError{Field: "language.min_text_length", Reason: "cannot be negative"}
	}

	return nil
}

// ConfigurationError indicates a broken deployment: bad or missing
// configuration that should abort initialization.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
