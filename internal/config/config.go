// Package config provides configuration types for assistant-alexa.
//
// Configuration is file-based (assistant-alexa.yaml) with environment
// overrides (ASSISTANT_ALEXA_*). It covers the webhook server, the Alexa
// platform, signature verification, reply rules, and the generate and
// deploy commands.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the top-level configuration for assistant-alexa.
type AppConfig struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Alexa configures the Alexa platform.
	Alexa AlexaConfig `yaml:"alexa" mapstructure:"alexa"`

	// Verifier configures request signature verification.
	Verifier VerifierConfig `yaml:"verifier" mapstructure:"verifier"`

	// RateLimit configures optional per-IP rate limiting of webhook requests.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Replies answer intents, evaluated in order, first match wins.
	Replies []ReplyConfig `yaml:"replies" mapstructure:"replies" validate:"omitempty,dive"`

	// FallbackReply answers requests no reply matches.
	FallbackReply ReplyConfig `yaml:"fallback_reply" mapstructure:"fallback_reply"`

	// Generator configures the schema generator.
	Generator GeneratorConfig `yaml:"generator" mapstructure:"generator"`

	// Deploy configures the skill deployment.
	Deploy DeployConfig `yaml:"deploy" mapstructure:"deploy"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required,hostname_port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`
}

// AlexaConfig configures the Alexa platform.
type AlexaConfig struct {
	// ApplicationID is the skill ID requests must carry.
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" validate:"required"`

	// InvocationName is the spoken skill name used by generate and deploy.
	InvocationName string `yaml:"invocation_name" mapstructure:"invocation_name"`

	// Route is the webhook path. Default: "/alexa".
	Route string `yaml:"route" mapstructure:"route" validate:"omitempty,route_path"`

	// UseVerifier enables request signature verification.
	// Default: true. Only disable for local testing.
	UseVerifier bool `yaml:"use_verifier" mapstructure:"use_verifier"`

	// Entities maps framework entity types to Alexa slot types.
	Entities map[string]string `yaml:"entities" mapstructure:"entities"`

	// ForcedOAuthToken replaces every extracted OAuth token.
	// Only meant for testing with the developer console simulator.
	ForcedOAuthToken string `yaml:"forced_oauth_token" mapstructure:"forced_oauth_token"`
}

// VerifierConfig configures signature verification.
type VerifierConfig struct {
	// Timeout bounds the certificate chain download. Default: "5s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// TimestampTolerance is the maximum request age. Default: "150s".
	TimestampTolerance string `yaml:"timestamp_tolerance" mapstructure:"timestamp_tolerance" validate:"omitempty,duration"`
}

// RateLimitConfig configures webhook rate limiting.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Requests is the number of requests allowed per window and IP.
	Requests int `yaml:"requests" mapstructure:"requests" validate:"omitempty,min=1"`

	// Window is the sliding window size. Default: "1m".
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty,duration"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// Enabled exports spans and metrics to stderr.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ServiceName is the service.name resource attribute.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`

	// SamplingRate is the trace sampling rate between 0 and 1.
	SamplingRate float64 `yaml:"sampling_rate" mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// ReplyConfig configures one reply rule.
type ReplyConfig struct {
	// Name identifies the reply in logs and errors.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Intent is a generic intent name, a raw intent name, or "*".
	Intent string `yaml:"intent" mapstructure:"intent"`

	// Condition is a CEL expression. Empty means always.
	Condition string `yaml:"condition" mapstructure:"condition"`

	// Say is the voice message. "${entity}" expands to entity values.
	Say string `yaml:"say" mapstructure:"say"`

	// SSML marks Say and Reprompts as SSML.
	SSML bool `yaml:"ssml" mapstructure:"ssml"`

	Reprompts  []string `yaml:"reprompts" mapstructure:"reprompts"`
	EndSession bool     `yaml:"end_session" mapstructure:"end_session"`

	Card *CardConfig `yaml:"card" mapstructure:"card"`

	// Hint is shown on devices with screens.
	Hint string `yaml:"hint" mapstructure:"hint"`

	// LinkAccount asks the user to link their account.
	LinkAccount bool `yaml:"link_account" mapstructure:"link_account"`

	// SessionData replaces the session data blob.
	SessionData string `yaml:"session_data" mapstructure:"session_data"`
}

// CardConfig configures a reply card.
type CardConfig struct {
	Title      string `yaml:"title" mapstructure:"title" validate:"required"`
	Body       string `yaml:"body" mapstructure:"body" validate:"required"`
	Image      string `yaml:"image" mapstructure:"image" validate:"omitempty,url"`
	SmallImage string `yaml:"small_image" mapstructure:"small_image" validate:"omitempty,url"`
}

// GeneratorConfig configures the schema generator.
type GeneratorConfig struct {
	// IntentsFile is the YAML file with intents and utterances.
	IntentsFile string `yaml:"intents_file" mapstructure:"intents_file"`

	// BuildDir receives alexa/schema_<lang>.json. Default: "build".
	BuildDir string `yaml:"build_dir" mapstructure:"build_dir"`
}

// DeployConfig configures the skill deployment.
type DeployConfig struct {
	// AskBinary is the ask CLI executable. Default: "ask".
	AskBinary string `yaml:"ask_binary" mapstructure:"ask_binary"`

	// PollInterval is the model training poll interval. Default: "5s".
	PollInterval string `yaml:"poll_interval" mapstructure:"poll_interval" validate:"omitempty,duration"`

	// Timeout bounds the wait for model training. Default: "2m".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// CommandTimeout bounds a single ask invocation. Default: "60s".
	CommandTimeout string `yaml:"command_timeout" mapstructure:"command_timeout" validate:"omitempty,duration"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *AppConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	if c.Alexa.ApplicationID == "" {
		c.Alexa.ApplicationID = "amzn1.ask.skill.dev"
	}

	// Signed requests only come from Alexa itself; local tools send none.
	if !viper.IsSet("alexa.use_verifier") {
		c.Alexa.UseVerifier = false
	}

	if len(c.Replies) == 0 {
		c.Replies = []ReplyConfig{
			{Name: "dev-invoke", Intent: "invoke", Say: "Hello from alexa!"},
			{Name: "dev-stop", Intent: "stop", Say: "Goodbye!", EndSession: true},
		}
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *AppConfig) SetDefaults() {
	// Server defaults: bind to localhost only.
	// Alexa needs a public HTTPS endpoint, usually a reverse proxy in front.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	// Alexa defaults
	if c.Alexa.Route == "" {
		c.Alexa.Route = "/alexa"
	}
	// Verification is on unless explicitly disabled in YAML/env.
	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("alexa.use_verifier") {
		c.Alexa.UseVerifier = true
	}
	if c.Alexa.Entities == nil {
		c.Alexa.Entities = map[string]string{}
	}

	// Verifier defaults
	if c.Verifier.Timeout == "" {
		c.Verifier.Timeout = "5s"
	}
	if c.Verifier.TimestampTolerance == "" {
		c.Verifier.TimestampTolerance = "150s"
	}

	// Rate limit defaults
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}

	// Telemetry defaults
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "assistant-alexa"
	}
	if !viper.IsSet("telemetry.sampling_rate") && c.Telemetry.SamplingRate == 0 {
		c.Telemetry.SamplingRate = 1.0
	}

	// Fallback reply
	if c.FallbackReply.Name == "" {
		c.FallbackReply.Name = "fallback"
	}
	if c.FallbackReply.Say == "" {
		c.FallbackReply.Say = "Sorry, I did not understand that."
	}

	// Generator defaults
	if c.Generator.IntentsFile == "" {
		c.Generator.IntentsFile = "config/intents.yaml"
	}
	if c.Generator.BuildDir == "" {
		c.Generator.BuildDir = "build"
	}

	// Deploy defaults
	if c.Deploy.AskBinary == "" {
		c.Deploy.AskBinary = "ask"
	}
	if c.Deploy.PollInterval == "" {
		c.Deploy.PollInterval = "5s"
	}
	if c.Deploy.Timeout == "" {
		c.Deploy.Timeout = "2m"
	}
	if c.Deploy.CommandTimeout == "" {
		c.Deploy.CommandTimeout = "60s"
	}
}

// Duration parses a duration field, returning fallback when it is empty or
// invalid. Fields are validated before use, so fallback only covers
// configs built without Validate.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
