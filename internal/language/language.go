package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the ISO 639-2 code for an unknown language.
const Undetermined = "und"

// Parse resolves a 2- or 3-letter ISO 639 code to its base language.
func Parse(code string) (language.Base, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return language.Base{}, fmt.Errorf("language code is empty")
	}
	if len(code) < 2 || len(code) > 3 {
		return language.Base{}, fmt.Errorf("language code %q must have 2 or 3 letters", code)
	}
	base, err := language.ParseBase(code)
	if err != nil || base.String() == Undetermined {
		return language.Base{}, fmt.Errorf("language code %q is not recognized", code)
	}
	return base, nil
}

// Valid reports whether code is a recognized ISO 639 code.
func Valid(code string) bool {
	_, err := Parse(code)
	return err == nil
}

// ToISO2 converts a recognized code to ISO 639-1 when one exists, otherwise
// to its canonical 3-letter form. Unrecognized input returns "".
func ToISO2(code string) string {
	base, err := Parse(code)
	if err != nil {
		return ""
	}
	return base.String()
}

// ToISO3 converts a recognized code to ISO 639-2. Unrecognized input returns "und".
func ToISO3(code string) string {
	base, err := Parse(code)
	if err != nil {
		return Undetermined
	}
	return base.ISO3()
}

// DisplayName returns the English name of a language code. It returns
// "Unknown" for empty input and the upper-cased code when unrecognized.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	base, err := Parse(trimmed)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(language.Make(base.String())); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// NormalizeList deduplicates codes and converts them to ISO 639-1.
// Unrecognized codes are dropped.
func NormalizeList(codes []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		iso := ToISO2(code)
		if iso == "" {
			continue
		}
		if _, ok := seen[iso]; ok {
			continue
		}
		seen[iso] = struct{}{}
		out = append(out, iso)
	}
	return out
}
