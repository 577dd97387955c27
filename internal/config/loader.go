package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// configName is the base name of the configuration file.
const configName = "assistant-alexa"

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for assistant-alexa.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself,
// which Viper's built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// ReadInConfig then returns ConfigFileNotFoundError (handled by callers).
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	// Environment variable support: ASSISTANT_ALEXA_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("ASSISTANT_ALEXA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an assistant-alexa config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, "."+configName),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, configName))
		}
	} else {
		paths = append(paths, "/etc/"+configName)
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for assistant-alexa.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable support.
// Example: ASSISTANT_ALEXA_ALEXA_APPLICATION_ID overrides alexa.application_id
func bindNestedEnvKeys() {
	// Server config
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.shutdown_timeout")

	// Alexa config
	_ = viper.BindEnv("alexa.application_id")
	_ = viper.BindEnv("alexa.invocation_name")
	_ = viper.BindEnv("alexa.route")
	_ = viper.BindEnv("alexa.use_verifier")
	// The simulator token is conventionally passed without prefix.
	_ = viper.BindEnv("alexa.forced_oauth_token", "ASSISTANT_ALEXA_ALEXA_FORCED_OAUTH_TOKEN", "FORCED_ALEXA_OAUTH_TOKEN")
	// Note: alexa.entities is a map, use the config file

	// Verifier config
	_ = viper.BindEnv("verifier.timeout")
	_ = viper.BindEnv("verifier.timestamp_tolerance")

	// Rate limit config
	_ = viper.BindEnv("rate_limit.enabled")
	_ = viper.BindEnv("rate_limit.requests")
	_ = viper.BindEnv("rate_limit.window")

	// Telemetry config
	_ = viper.BindEnv("telemetry.enabled")
	_ = viper.BindEnv("telemetry.service_name")
	_ = viper.BindEnv("telemetry.sampling_rate")

	// Note: replies is an array, use the config file

	// Generator and deploy config
	_ = viper.BindEnv("generator.intents_file")
	_ = viper.BindEnv("generator.build_dir")
	_ = viper.BindEnv("deploy.ask_binary")
	_ = viper.BindEnv("deploy.poll_interval")
	_ = viper.BindEnv("deploy.timeout")
	_ = viper.BindEnv("deploy.command_timeout")

	// Dev mode
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated AppConfig.
func LoadConfig() (*AppConfig, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*AppConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
