package configutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
)

// Schema lists the keys a provider accepts under its settings block.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings checks a provider settings block found at path. Keys match
// regardless of case, underscores and hyphens; a required key holding a
// blank string counts as missing.
func ValidateSettings(path string, input map[string]any, schema Schema) error {
	known := make(map[string]string, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = ""
	}
	for _, k := range schema.Required {
		known[normalizeKey(k)] = k
	}

	present := make(map[string]bool, len(input))
	var unknown []string
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := known[nk]; !ok {
			if !schema.AllowUnknown {
				unknown = append(unknown, k)
			}
			continue
		}
		present[nk] = !blank(v)
	}

	var missing []string
	for nk, name := range known {
		if name != "" && !present[nk] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	return errorsx.Validation(fmt.Sprintf("%s: %s", path, describe(missing, unknown)))
}

// LoadSettings validates input against schema and decodes it into out.
func LoadSettings(path string, input map[string]any, schema Schema, out any) error {
	if err := ValidateSettings(path, input, schema); err != nil {
		return err
	}
	if err := DecodeSettings(input, out); err != nil {
		return errorsx.Wrap(fmt.Errorf("%s: %w", path, err), errorsx.ReasonValidation)
	}
	return nil
}

func describe(missing, unknown []string) string {
	sort.Strings(missing)
	sort.Strings(unknown)
	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

func blank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
