// Package env reads process settings that must be available before config.Load runs.
package env

import (
	"os"
	"strings"
)

const prefix = "BRANDPAY_"

// Get returns BRANDPAY_<key>, then <key>, then fallback.
func Get(key, fallback string) string {
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
