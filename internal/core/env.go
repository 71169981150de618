package core

import "os"

// GetEnv retrieves an environment variable, checking both the standard name
// and a RELAY-prefixed version. Returns the first non-empty value found.
// This allows environment variables to be set with or without the RELAY_ prefix.
func GetEnv(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return os.Getenv("RELAY_" + key)
}
