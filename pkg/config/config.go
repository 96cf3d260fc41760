/*
Package config manages the TOML settings for tagfilter.

Settings are loaded once at startup and only change through Config.Update,
which persists them again. A damaged file is recovered section by section;
anything unreadable falls back to the built-in defaults.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Match  MatchConfig  `toml:"match"`
	Sync   SyncConfig   `toml:"sync"`
	Filter FilterConfig `toml:"filter"`
	Server ServerConfig `toml:"server"`
	Vault  VaultConfig  `toml:"vault"`
}

// MatchConfig toggles the suggestion tiers.
type MatchConfig struct {
	EnablePrefix    bool `toml:"enable_prefix"`
	EnableSuffix    bool `toml:"enable_suffix"`
	EnableSubstring bool `toml:"enable_substring"`
}

// SyncConfig has write-cycle timing options.
type SyncConfig struct {
	DebounceMs      int `toml:"debounce_ms"`
	IndexDebounceMs int `toml:"index_debounce_ms"`
	WriteTimeoutMs  int `toml:"write_timeout_ms"`
}

// Debounce is the quiet period before an edit is written back.
func (s SyncConfig) Debounce() time.Duration {
	if s.DebounceMs < 0 {
		return 0
	}
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// IndexDebounce is the quiet period before the tag index is rebuilt.
func (s SyncConfig) IndexDebounce() time.Duration {
	if s.IndexDebounceMs < 0 {
		return 0
	}
	return time.Duration(s.IndexDebounceMs) * time.Millisecond
}

// WriteTimeout bounds one read-compute-write cycle.
func (s SyncConfig) WriteTimeout() time.Duration {
	if s.WriteTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

// FilterConfig controls how a typed query expands into tag clauses.
type FilterConfig struct {
	MaxTagsPerTerm int `toml:"max_tags_per_term"`
}

// ServerConfig has IPC related options.
type ServerConfig struct {
	MaxLimit int `toml:"max_limit"`
	MaxToken int `toml:"max_token"`
}

// VaultConfig points at the document folder.
type VaultConfig struct {
	Root       string   `toml:"root"`
	Extensions []string `toml:"extensions"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/tagfilter
// 2. ~/Library/Application Support/tagfilter (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "tagfilter")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "tagfilter")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/tagfilter/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Match: MatchConfig{
			EnablePrefix:    true,
			EnableSuffix:    true,
			EnableSubstring: true,
		},
		Sync: SyncConfig{
			DebounceMs:      1000,
			IndexDebounceMs: 500,
			WriteTimeoutMs:  5000,
		},
		Filter: FilterConfig{
			MaxTagsPerTerm: 64,
		},
		Server: ServerConfig{
			MaxLimit: 12,
			MaxToken: 120,
		},
		Vault: VaultConfig{
			Root:       "",
			Extensions: []string{".md"},
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.sanitize()
	return config, nil
}

// tryPartialParse salvages whatever sections still decode.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "match"); ok {
		extractMatchConfig(section, &config.Match)
	}
	if section, ok := utils.ExtractSection(tempConfig, "sync"); ok {
		extractSyncConfig(section, &config.Sync)
	}
	if section, ok := utils.ExtractSection(tempConfig, "filter"); ok {
		if val, ok := utils.ExtractInt64(section, "max_tags_per_term"); ok {
			config.Filter.MaxTagsPerTerm = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "vault"); ok {
		extractVaultConfig(section, &config.Vault)
	}
	config.sanitize()
	return config, nil
}

func extractMatchConfig(data map[string]any, match *MatchConfig) {
	if val, ok := utils.ExtractBool(data, "enable_prefix"); ok {
		match.EnablePrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_suffix"); ok {
		match.EnableSuffix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_substring"); ok {
		match.EnableSubstring = val
	}
}

func extractSyncConfig(data map[string]any, sync *SyncConfig) {
	if val, ok := utils.ExtractInt64(data, "debounce_ms"); ok {
		sync.DebounceMs = val
	}
	if val, ok := utils.ExtractInt64(data, "index_debounce_ms"); ok {
		sync.IndexDebounceMs = val
	}
	if val, ok := utils.ExtractInt64(data, "write_timeout_ms"); ok {
		sync.WriteTimeoutMs = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_token"); ok {
		server.MaxToken = val
	}
}

func extractVaultConfig(data map[string]any, vault *VaultConfig) {
	if val, ok := utils.ExtractString(data, "root"); ok {
		vault.Root = val
	}
	if val, ok := utils.ExtractStringSlice(data, "extensions"); ok && len(val) > 0 {
		vault.Extensions = val
	}
}

// sanitize clamps values that would break the engine.
func (c *Config) sanitize() {
	if c.Sync.DebounceMs < 0 {
		c.Sync.DebounceMs = 0
	}
	if c.Sync.IndexDebounceMs < 0 {
		c.Sync.IndexDebounceMs = 0
	}
	if c.Filter.MaxTagsPerTerm <= 0 {
		c.Filter.MaxTagsPerTerm = DefaultConfig().Filter.MaxTagsPerTerm
	}
	if c.Server.MaxLimit <= 0 {
		c.Server.MaxLimit = DefaultConfig().Server.MaxLimit
	}
	if len(c.Vault.Extensions) == 0 {
		c.Vault.Extensions = DefaultConfig().Vault.Extensions
	}
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update applies a settings change and saves it. Nil fields are left as is.
// An empty configPath only updates the in-memory values.
func (c *Config) Update(configPath string, enablePrefix, enableSuffix, enableSubstring *bool, debounceMs *int) error {
	if enablePrefix != nil {
		c.Match.EnablePrefix = *enablePrefix
	}
	if enableSuffix != nil {
		c.Match.EnableSuffix = *enableSuffix
	}
	if enableSubstring != nil {
		c.Match.EnableSubstring = *enableSubstring
	}
	if debounceMs != nil {
		c.Sync.DebounceMs = *debounceMs
	}
	c.sanitize()
	if configPath == "" {
		return nil
	}
	return SaveConfig(c, configPath)
}
