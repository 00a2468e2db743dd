package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/orgsync/pkg/errors"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	// Check OS env directly first
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	// If Viper doesn't have it but OS does, return OS value
	if viperValue == "" && osValue != "" {
		return osValue
	}
	return strings.TrimSpace(viperValue)
}

// GetStringDefault returns the value of key, or def when it is unset.
func GetStringDefault(key, def string) string {
	if v := GetString(key); v != "" {
		return v
	}
	return def
}

// Required returns the value of key or a ConfigError naming the missing
// variable.
func Required(component, key string) (string, error) {
	v := GetString(key)
	if v == "" {
		return "", errors.NewConfigError(component, key+" is not set", nil)
	}
	return v, nil
}

// GetDuration parses key as a time.Duration ("30s", "5m"). A bare number
// is read as seconds. Unset keys return def.
func GetDuration(key string, def time.Duration) (time.Duration, error) {
	v := GetString(key)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.NewConfigError("config", key+" is not a duration", err)
	}
	return d, nil
}

// GetInt parses key as an integer. Unset keys return def.
func GetInt(key string, def int) (int, error) {
	v := GetString(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewConfigError("config", key+" is not an integer", err)
	}
	return n, nil
}

// GetList splits a comma separated value, dropping blank entries.
func GetList(key string) []string {
	var out []string
	for _, item := range strings.Split(GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
