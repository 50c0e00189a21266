package scrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type symbol string

func (s symbol) String() string { return string(s) }

func TestBuildOptions(t *testing.T) {
	tcs := []struct {
		name      string
		config    any
		extra     []string
		pattern   bool
		redactAll bool
	}{
		{name: "nil config", config: nil},
		{name: "empty slice", config: []any{}},
		{name: "blank names only", config: []string{"", ""}},
		{name: "single string", config: "password", pattern: true},
		{name: "string slice", config: []string{"password", "token"}, pattern: true},
		{name: "symbol entry", config: []any{symbol("api_key")}, pattern: true},
		{name: "extra only", config: nil, extra: []string{"token"}, pattern: true},
		{name: "sentinel only", config: []any{ScrubAll}, redactAll: true},
		{name: "single sentinel", config: ScrubAll, redactAll: true},
		{name: "sentinel and names", config: []any{"password", ScrubAll}, pattern: true, redactAll: true},
		{name: "unsupported entries ignored", config: []any{42, 3.5, nil}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			o := BuildOptions(tc.config, tc.extra)
			assert.Equal(t, tc.pattern, o.FieldsPattern != nil)
			assert.Equal(t, tc.redactAll, o.RedactAll)
		})
	}
}

func TestBuildOptions_SentinelIsNotAFieldName(t *testing.T) {
	o := BuildOptions([]any{"password", ScrubAll}, nil)
	require.NotNil(t, o.FieldsPattern)
	assert.False(t, Matches(o.FieldsPattern, ":scrub_all"))
	assert.False(t, Matches(o.FieldsPattern, "scrub_all"))
}

func TestMatches(t *testing.T) {
	o := BuildOptions([]any{symbol("api_key"), "Token", "42"}, []string{"x-auth"})

	tcs := []struct {
		key    any
		expect bool
	}{
		{key: "api_key", expect: true},
		{key: "MY_API_KEY_2", expect: true},
		{key: "apikey", expect: false},
		{key: "access_token", expect: true},
		{key: "X-Auth-Header", expect: true},
		{key: 1423, expect: true},
		{key: 43, expect: false},
		{key: symbol("token"), expect: true},
		{key: nil, expect: false},
	}

	for _, tc := range tcs {
		assert.Equal(t, tc.expect, Matches(o.FieldsPattern, tc.key), "%v", tc.key)
	}

	assert.False(t, Matches(nil, "password"))
}

func TestParseFields(t *testing.T) {
	entries := ParseFields([]string{" password ", "", ":scrub_all", "[SCRUB_ALL]", "token"})
	assert.Equal(t, []any{"password", ScrubAll, ScrubAll, "token"}, entries)
	assert.Empty(t, ParseFields(nil))
}
