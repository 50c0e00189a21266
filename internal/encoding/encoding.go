// Package encoding normalises keys and values into valid, NFC-normalised
// UTF-8 strings before they are matched or sent to the error tracker.
package encoding

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EncodeKey returns the canonical string form of a mapping key.
// Keys that are not strings are rendered with their String method when they
// have one, and with %v otherwise.
func EncodeKey(key any) string {
	switch k := key.(type) {
	case nil:
		return ""
	case string:
		return EncodeValue(k)
	case []byte:
		return EncodeValue(string(k))
	case fmt.Stringer:
		return EncodeValue(k.String())
	default:
		return EncodeValue(fmt.Sprintf("%v", k))
	}
}

// EncodeValue repairs invalid UTF-8 and applies NFC normalisation.
func EncodeValue(s string) string {
	if s == "" {
		return s
	}
	if utf8.ValidString(s) && norm.NFC.IsNormalString(s) {
		return s
	}

	t := transform.Chain(unicode.UTF8.NewDecoder(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return out
}
