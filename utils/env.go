package utils

import (
	"slices"
	"strings"
)

// EnvPrefix is the prefix for all rkmpp environment variables.
const EnvPrefix = "RKMPP_"

// EnvTrueValues contains strings that we interpret as boolean true in env vars.
var EnvTrueValues = []string{"true", "yes", "1", "TRUE", "YES"}

// EnvFalseValues contains strings that we interpret as boolean false in env vars.
var EnvFalseValues = []string{"false", "no", "0", "FALSE", "NO"}

// LookupFunc matches the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// IsEnvTrue reports whether the value is one of EnvTrueValues.
func IsEnvTrue(val string) bool {
	return slices.Contains(EnvTrueValues, strings.TrimSpace(val))
}

// IsEnvFalse reports whether the value is one of EnvFalseValues.
func IsEnvFalse(val string) bool {
	return slices.Contains(EnvFalseValues, strings.TrimSpace(val))
}

// EnvName returns the full name of an rkmpp environment switch.
func EnvName(name string) string {
	return EnvPrefix + name
}
