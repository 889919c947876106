package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted during config resolution.
const (
	envAppID     = "WECHAT_APP_ID"
	envAppSecret = "WECHAT_APP_SECRET"
	envOpenAIKey = "OPENAI_API_KEY"
	envGeminiKey = "GEMINI_API_KEY"
	envProvider  = "AI_PROVIDER"
	envVerbose   = "WX_UPLOADER_VERBOSE"
)

// Recognized AI provider names. Empty means cover generation is disabled.
const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
)

const defaultConcurrency = 4

// Default config file names probed in the working directory when
// --config is not given. TOML and YAML carry the same schema.
var configCandidates = []string{"wx-uploader.toml", "wx-uploader.yaml", "wx-uploader.yml"}

//go:embed config/wx-uploader.toml
var sampleConfig string

// AccountEntry is one named WeChat account in the config file.
type AccountEntry struct {
	Name        string `toml:"name" yaml:"name"`
	AppID       string `toml:"app_id" yaml:"app_id"`
	AppSecret   string `toml:"app_secret" yaml:"app_secret"`
	Description string `toml:"description" yaml:"description"`
}

// AISettings configures the cover image provider in the config file.
type AISettings struct {
	Provider     string `toml:"provider" yaml:"provider"`
	OpenAIAPIKey string `toml:"openai_api_key" yaml:"openai_api_key"`
	GeminiAPIKey string `toml:"gemini_api_key" yaml:"gemini_api_key"`
	BaseURL      string `toml:"base_url" yaml:"base_url"`
}

// FileConfig is the parsed configuration file. Pointer fields distinguish
// "not set" from zero values so the field-by-field merge can fall through
// to lower-precedence sources.
type FileConfig struct {
	DefaultAccount string         `toml:"default_account" yaml:"default_account"`
	Verbose        *bool          `toml:"verbose" yaml:"verbose"`
	Concurrency    *int           `toml:"concurrency" yaml:"concurrency"`
	Accounts       []AccountEntry `toml:"accounts" yaml:"accounts"`
	AI             AISettings     `toml:"ai" yaml:"ai"`
}

// Flags carries the explicit invocation flags into config resolution.
// The *Set fields record whether the operator actually passed the flag,
// since a false/zero flag must not shadow a config file value.
type Flags struct {
	ConfigPath  string
	Account     string
	Provider    string
	APIKey      string
	Verbose     bool
	VerboseSet  bool
	Concurrency int
}

// RuntimeConfig is the effective configuration after merging flags,
// config file, environment, and defaults. Built once per invocation and
// read-only afterwards, so it is safe to share across worker goroutines.
type RuntimeConfig struct {
	Provider    string // "", "openai", or "gemini"
	APIKey      string
	BaseURL     string
	Verbose     bool
	Concurrency int
	Account     Account
}

// AIConfigured reports whether both a provider and its key resolved.
func (c *RuntimeConfig) AIConfigured() bool {
	return c.Provider != "" && c.APIKey != ""
}

// loadFileConfig parses the config file at path, choosing the parser by
// extension. Both serializations share one schema.
func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .toml or .yaml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the explicit --config path, or the first default
// candidate that exists, or "".
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configCandidates {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolveConfig merges the four configuration sources into a
// RuntimeConfig and an account registry. Precedence, highest first:
// flags > config file > environment > defaults, merged field by field.
func resolveConfig(flags Flags) (*RuntimeConfig, *AccountRegistry, error) {
	var fileCfg *FileConfig
	if path := findConfigFile(flags.ConfigPath); path != "" {
		cfg, err := loadFileConfig(path)
		if err != nil {
			return nil, nil, &ConfigError{Message: fmt.Sprintf("cannot load %s", path), Err: err}
		}
		fileCfg = cfg
	} else if flags.ConfigPath != "" {
		return nil, nil, &ConfigError{Message: fmt.Sprintf("config file %s not found", flags.ConfigPath)}
	}
	if fileCfg == nil {
		fileCfg = &FileConfig{}
	}

	registry, err := buildRegistry(fileCfg)
	if err != nil {
		return nil, nil, err
	}

	account, err := registry.Resolve(flags.Account)
	if err != nil {
		return nil, nil, err
	}

	cfg := &RuntimeConfig{
		BaseURL: fileCfg.AI.BaseURL,
		Account: account,
	}

	// provider: flags > file > env > default (a configured key implies
	// its provider)
	switch {
	case flags.Provider != "":
		cfg.Provider = flags.Provider
	case fileCfg.AI.Provider != "":
		cfg.Provider = fileCfg.AI.Provider
	case os.Getenv(envProvider) != "":
		cfg.Provider = os.Getenv(envProvider)
	case fileCfg.AI.OpenAIAPIKey != "" || os.Getenv(envOpenAIKey) != "":
		cfg.Provider = providerOpenAI
	case fileCfg.AI.GeminiAPIKey != "" || os.Getenv(envGeminiKey) != "":
		cfg.Provider = providerGemini
	}
	cfg.Provider = strings.ToLower(cfg.Provider)
	if cfg.Provider != "" && cfg.Provider != providerOpenAI && cfg.Provider != providerGemini {
		return nil, nil, &ConfigError{Message: fmt.Sprintf("unknown AI provider %q (supported: %s, %s)", cfg.Provider, providerOpenAI, providerGemini)}
	}

	// API key: flags > file > env, keyed by the resolved provider
	switch {
	case flags.APIKey != "":
		cfg.APIKey = flags.APIKey
	case cfg.Provider == providerOpenAI:
		cfg.APIKey = firstNonEmpty(fileCfg.AI.OpenAIAPIKey, os.Getenv(envOpenAIKey))
	case cfg.Provider == providerGemini:
		cfg.APIKey = firstNonEmpty(fileCfg.AI.GeminiAPIKey, os.Getenv(envGeminiKey))
	}

	// verbose: flags > file > env > default false
	switch {
	case flags.VerboseSet:
		cfg.Verbose = flags.Verbose
	case fileCfg.Verbose != nil:
		cfg.Verbose = *fileCfg.Verbose
	default:
		v := os.Getenv(envVerbose)
		cfg.Verbose = v == "1" || strings.EqualFold(v, "true")
	}

	// concurrency: flags > file > default
	switch {
	case flags.Concurrency > 0:
		cfg.Concurrency = flags.Concurrency
	case fileCfg.Concurrency != nil && *fileCfg.Concurrency > 0:
		cfg.Concurrency = *fileCfg.Concurrency
	default:
		cfg.Concurrency = defaultConcurrency
	}

	return cfg, registry, nil
}

// buildRegistry combines the config file's named accounts with the
// implicit environment account. The environment credentials are just one
// more entry named "default"; nothing downstream special-cases them.
func buildRegistry(fileCfg *FileConfig) (*AccountRegistry, error) {
	entries := make([]Account, 0, len(fileCfg.Accounts)+1)
	for _, a := range fileCfg.Accounts {
		if a.Name == "" {
			return nil, &ConfigError{Message: "account entry is missing a name"}
		}
		if a.AppID == "" || a.AppSecret == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("account %q is missing app_id or app_secret", a.Name)}
		}
		entries = append(entries, Account{
			Name:        a.Name,
			AppID:       a.AppID,
			AppSecret:   a.AppSecret,
			Description: a.Description,
		})
	}

	if id, secret := os.Getenv(envAppID), os.Getenv(envAppSecret); id != "" && secret != "" {
		if !hasAccount(entries, "default") {
			entries = append(entries, Account{
				Name:        "default",
				AppID:       id,
				AppSecret:   secret,
				Description: "from environment",
			})
		}
	}

	return newAccountRegistry(entries, fileCfg.DefaultAccount)
}

func hasAccount(entries []Account, name string) bool {
	for _, a := range entries {
		if a.Name == name {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writeSampleConfig writes the commented TOML template for `init`.
func writeSampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0600)
}
