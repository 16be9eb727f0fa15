// Package sanitize rewrites upstream-provider identity out of outbound
// payloads. The transform is structure-preserving over JSON-shaped values:
// only strings change, and only via a fixed, ordered rule list.
package sanitize

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"chaingate/config"
)

// Rule is one case-insensitive replacement applied to every string leaf.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Sanitizer applies its rules in order. It is immutable after construction
// and safe for concurrent use.
type Sanitizer struct {
	rules []Rule
}

// New builds the rule list from the provider and brand identities. Host rules
// come first so provider hostnames (including arbitrary subdomains) collapse
// to the gateway host before the bare brand-name rule runs. The replacement
// strings must not themselves match any rule, which keeps the transform
// idempotent.
func New(provider config.ProviderConfig, brand config.BrandConfig) *Sanitizer {
	rules := make([]Rule, 0, 3)
	hosts := []string{provider.HTTPHost, provider.WSHost}
	seen := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		pattern := regexp.MustCompile(`(?i)([a-z0-9-]+\.)*` + regexp.QuoteMeta(host))
		rules = append(rules, Rule{Pattern: pattern, Replacement: brand.Host})
	}
	if name := strings.TrimSpace(provider.Name); name != "" {
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name))
		rules = append(rules, Rule{Pattern: pattern, Replacement: brand.Name})
	}
	return &Sanitizer{rules: rules}
}

// String runs every rule over one string leaf.
func (s *Sanitizer) String(value string) string {
	for _, rule := range s.rules {
		value = rule.Pattern.ReplaceAllString(value, rule.Replacement)
	}
	return value
}

// Value walks a decoded JSON value, rebuilding arrays and objects and
// rewriting string leaves. Scalars other than strings pass through untouched,
// so key sets, array lengths, and types are all preserved.
func (s *Sanitizer) Value(value interface{}) interface{} {
	switch typed := value.(type) {
	case string:
		return s.String(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, element := range typed {
			out[i] = s.Value(element)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, element := range typed {
			out[key] = s.Value(element)
		}
		return out
	default:
		// null, bool, json.Number, float64
		return value
	}
}

// Raw sanitizes a serialized JSON document. Numbers are decoded with
// UseNumber so round-tripping never loses precision. The second return is
// false when the input is not valid JSON; callers forward such frames
// unmodified (fail-open for non-JSON traffic).
func (s *Sanitizer) Raw(data []byte) ([]byte, bool) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return data, false
	}
	// Trailing garbage after the document also disqualifies the frame.
	if decoder.More() {
		return data, false
	}
	out, err := json.Marshal(s.Value(value))
	if err != nil {
		return data, false
	}
	return out, true
}
