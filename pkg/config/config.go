package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the CLI
type Config struct {
	Home    string
	Log     LogConfig
	API     APIConfig
	Heroku  HerokuConfig
	GitHub  GitHubConfig
	Project ProjectConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// APIConfig holds MetaCI API client configuration
type APIConfig struct {
	Timeout time.Duration
}

// HerokuConfig holds Heroku Platform API configuration
type HerokuConfig struct {
	APIURL       string
	APIKey       string
	SourceURL    string
	PollInterval time.Duration
}

// GitHubConfig holds source hosting configuration
type GitHubConfig struct {
	BaseURL string
}

// ProjectConfig holds local project detection settings
type ProjectConfig struct {
	ConfigFile string
}

// KeychainPath returns the location of the local credential store
func (c *Config) KeychainPath() string {
	return filepath.Join(c.Home, "keychain.db")
}

// Load loads configuration from defaults, an optional config file and
// METACI_* environment variables. An explicit configFile must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("metaci")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("home"))
		v.AddConfigPath(".")
	}

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		Home: v.GetString("home"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		API: APIConfig{
			Timeout: v.GetDuration("api.timeout"),
		},
		Heroku: HerokuConfig{
			APIURL:       v.GetString("heroku.api_url"),
			APIKey:       v.GetString("heroku.api_key"),
			SourceURL:    v.GetString("heroku.source_url"),
			PollInterval: v.GetDuration("heroku.poll_interval"),
		},
		GitHub: GitHubConfig{
			BaseURL: strings.TrimRight(v.GetString("github.base_url"), "/"),
		},
		Project: ProjectConfig{
			ConfigFile: v.GetString("project.config_file"),
		},
	}

	// The Heroku CLI's own variable is honoured when nothing else is set
	if config.Heroku.APIKey == "" {
		config.Heroku.APIKey = os.Getenv("HEROKU_API_KEY")
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("home", filepath.Join(home, ".metaci"))

	v.SetDefault("log.level", "warn")

	v.SetDefault("api.timeout", 30*time.Second)

	// Heroku defaults
	v.SetDefault("heroku.api_url", "https://api.heroku.com")
	v.SetDefault("heroku.api_key", "")
	v.SetDefault("heroku.source_url", "https://github.com/SalesforceFoundation/MetaCI/tarball/master/")
	v.SetDefault("heroku.poll_interval", 2*time.Second)

	v.SetDefault("github.base_url", "https://github.com")

	v.SetDefault("project.config_file", "cumulusci.yml")
}
