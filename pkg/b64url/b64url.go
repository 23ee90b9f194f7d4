// Package b64url encodes and decodes unpadded base64url segments as used by
// compact tokens.
package b64url

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
)

// ErrDecode is returned when the input is not correctly encoded.
var ErrDecode = errors.New("the input to be decoded is not correctly encoded")

// Encode returns the unpadded base64url form of b.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeString encodes the UTF-8 bytes of s.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode accepts base64url (or standard base64) input, with or without
// padding, ignoring whitespace.
func Decode(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-':
			return '+'
		case '_':
			return '/'
		}
		return r
	}, s)
	s = strings.TrimRight(s, "=")

	out, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrDecode
	}
	return out, nil
}
