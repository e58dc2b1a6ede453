package stages

import (
	"strings"

	"subtoolkit/internal/language"
)

// MaskSecret hides all but the first 8 and last 4 characters of a secret.
// Values of 12 characters or fewer are hidden entirely.
func MaskSecret(value string) string {
	if len(value) <= 12 {
		return "***"
	}
	return value[:8] + "***" + value[len(value)-4:]
}

// MaskEnv masks the value of every KEY=VALUE entry whose name contains "KEY".
func MaskEnv(env []string) []string {
	out := make([]string, len(env))
	for i, entry := range env {
		name, value, ok := strings.Cut(entry, "=")
		if ok && strings.Contains(strings.ToUpper(name), "KEY") {
			entry = name + "=" + MaskSecret(value)
		}
		out[i] = entry
	}
	return out
}

// ValidateLanguage checks that code is a recognized ISO 639 code.
func ValidateLanguage(code string) error {
	_, err := language.Parse(code)
	return err
}
