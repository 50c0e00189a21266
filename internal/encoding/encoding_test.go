package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type symbol string

func (s symbol) String() string { return string(s) }

func TestEncodeKey(t *testing.T) {
	tcs := []struct {
		name   string
		key    any
		expect string
	}{
		{name: "nil", key: nil, expect: ""},
		{name: "plain string", key: "password", expect: "password"},
		{name: "bytes", key: []byte("token"), expect: "token"},
		{name: "stringer", key: symbol("api_key"), expect: "api_key"},
		{name: "integer", key: 42, expect: "42"},
		{name: "bool", key: true, expect: "true"},
		{name: "invalid utf8", key: "pass\xffword", expect: "pass\uFFFDword"},
		{name: "decomposed", key: "cafe\u0301", expect: "caf\u00e9"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, EncodeKey(tc.key))
		})
	}
}

func TestEncodeValue_PassesThroughValidInput(t *testing.T) {
	assert.Equal(t, "", EncodeValue(""))
	assert.Equal(t, "hello world", EncodeValue("hello world"))
}
