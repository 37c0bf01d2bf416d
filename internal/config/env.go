package config

import (
	"os"
	"strconv"
	"time"
)

// Helper functions shared by the config loaders.  Each returns the default
// when the variable is unset or cannot be parsed.

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v // set and non-empty
	}
	return def // unset
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" { return d } // unset
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d // unrecognised value
}

func envInt(k string, d int) int {
	v := os.Getenv(k); if v == "" { return d }
	if n, err := strconv.Atoi(v); err == nil { return n }
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k); if v == "" { return d }
	if dur, err := time.ParseDuration(v); err == nil { return dur }
	return d
}
