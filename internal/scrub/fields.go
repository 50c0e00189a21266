package scrub

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/songify/reporter/internal/encoding"
)

type scrubAll struct{}

func (scrubAll) String() string { return ":scrub_all" }

// ScrubAll is the config entry that redacts every value regardless of key.
var ScrubAll any = scrubAll{}

// Options is derived once per scrub call.
type Options struct {
	// FieldsPattern matches sensitive key names. Nil never matches.
	FieldsPattern *regexp.Regexp
	// RedactAll replaces every value in the tree with the marker.
	RedactAll bool
}

// BuildOptions compiles the sensitive-field pattern from config and the
// call's extra fields. config may be nil, a single entry or a slice of
// entries; entries are strings, fmt.Stringers or ScrubAll. Other entries
// are ignored, as are blank names.
func BuildOptions(config any, extraFields []string) Options {
	entries := normalizeConfig(config)
	return Options{
		FieldsPattern: buildFieldsPattern(entries, extraFields),
		RedactAll:     containsScrubAll(entries),
	}
}

// Matches reports whether the encoded key contains any sensitive name.
func Matches(pattern *regexp.Regexp, key any) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(encoding.EncodeKey(key))
}

// ParseFields turns configured names into config entries. ":scrub_all" and
// "[scrub_all]" select ScrubAll.
func ParseFields(names []string) []any {
	entries := make([]any, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "":
			continue
		case ":scrub_all", "[scrub_all]":
			entries = append(entries, ScrubAll)
		default:
			entries = append(entries, name)
		}
	}
	return entries
}

func normalizeConfig(config any) []any {
	switch c := config.(type) {
	case nil:
		return nil
	case []any:
		return c
	case []string:
		out := make([]any, len(c))
		for i, s := range c {
			out[i] = s
		}
		return out
	case []fmt.Stringer:
		out := make([]any, len(c))
		for i, s := range c {
			out[i] = s
		}
		return out
	default:
		return []any{c}
	}
}

func containsScrubAll(entries []any) bool {
	for _, e := range entries {
		if _, ok := e.(scrubAll); ok {
			return true
		}
	}
	return false
}

func buildFieldsPattern(entries []any, extraFields []string) *regexp.Regexp {
	var fields []string
	for _, e := range entries {
		switch f := e.(type) {
		case scrubAll:
			continue
		case string:
			fields = append(fields, f)
		case fmt.Stringer:
			fields = append(fields, f.String())
		}
	}
	fields = append(fields, extraFields...)

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = encoding.EncodeValue(f)
		if f == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(f))
	}
	if len(quoted) == 0 {
		return nil
	}

	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}
