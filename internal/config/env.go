// internal/config/env.go
package config

import "os"

// Environment overrides. Secrets stay out of the YAML file.
const (
	EnvMQTTUsername = "MBSCOPE_MQTT_USERNAME"
	EnvMQTTPassword = "MBSCOPE_MQTT_PASSWORD"
	EnvMQTTBroker   = "MBSCOPE_MQTT_BROKER"
	EnvLogLevel     = "MBSCOPE_LOG_LEVEL"
)

// ApplyEnv overlays environment values onto cfg.
// Callers load a .env file first (see cmd/mbscope).
func ApplyEnv(cfg *Config) {
	ApplyEnvFrom(cfg, os.LookupEnv)
}

// ApplyEnvFrom is ApplyEnv with an injectable lookup.
func ApplyEnvFrom(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Scope.Log.Level = v
	}

	m := cfg.Scope.Publish.MQTT
	if m == nil {
		return
	}
	if v, ok := lookup(EnvMQTTBroker); ok && v != "" {
		m.Broker = v
	}
	if v, ok := lookup(EnvMQTTUsername); ok {
		m.Username = v
	}
	if v, ok := lookup(EnvMQTTPassword); ok {
		m.Password = v
	}
}
