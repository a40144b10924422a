// Package env reads typed configuration values out of the process
// environment. It exists because the gateway's configuration package wants
// the same call-site shape the teacher's common/config package uses
// (env.Int(key, default), env.String(key, default), ...) without pulling in
// a full config-file library for what is, in this module, a handful of
// process-level knobs.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the environment variable's value, or fallback if unset.
func String(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// Int returns the environment variable parsed as an int, or fallback if
// unset or unparsable.
func Int(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// Float64 returns the environment variable parsed as a float64, or fallback
// if unset or unparsable.
func Float64(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Bool returns the environment variable parsed as a bool, or fallback if
// unset or unparsable. Accepts the same forms as strconv.ParseBool plus
// "yes"/"no" for operator convenience.
func Bool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes":
		return true
	case "no":
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// Duration returns the environment variable parsed as a time.Duration, or
// fallback if unset or unparsable. A bare integer is interpreted as seconds,
// matching the teacher's convention of storing durations as "_SECONDS" env
// vars and converting them at load time.
func Duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
