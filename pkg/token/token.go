// Package token signs and verifies compact HS256 tokens.
//
// Signing produces header.payload.signature where header and payload are
// unpadded base64url JSON. Verification checks structure, algorithm,
// signature and the registered time claims, returning typed errors that all
// match ErrGeneric.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tms-widget/pkg/b64url"
)

// Algorithm is the only algorithm this package signs with.
const Algorithm = "HS256"

// Claims is the JSON object carried by a token.
type Claims map[string]interface{}

// Header is the protected header of a token.
type Header map[string]interface{}

type signConfig struct {
	header Header
	now    func() time.Time
	ttl    time.Duration
	iat    bool
}

// SignOption customises Sign.
type SignOption func(*signConfig)

// WithHeader adds a protected header parameter. "alg" cannot be overridden.
func WithHeader(name string, value interface{}) SignOption {
	return func(c *signConfig) {
		if name == "alg" {
			return
		}
		c.header[name] = value
	}
}

// WithIssuedNow sets "iat" to the current time in seconds.
func WithIssuedNow() SignOption {
	return func(c *signConfig) { c.iat = true }
}

// WithExpiresIn sets "exp" relative to the current time. It implies
// WithIssuedNow.
func WithExpiresIn(d time.Duration) SignOption {
	return func(c *signConfig) {
		c.iat = true
		c.ttl = d
	}
}

// WithSignTime overrides the clock used for "iat" and "exp".
func WithSignTime(now func() time.Time) SignOption {
	return func(c *signConfig) { c.now = now }
}

// Sign serialises claims with an HS256 header and signs them with key.
// The claims map is not modified.
func Sign(claims Claims, key []byte, opts ...SignOption) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}

	cfg := signConfig{header: Header{}, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	mc := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		mc[k] = v
	}
	if cfg.iat {
		now := cfg.now()
		mc["iat"] = now.Unix()
		if cfg.ttl > 0 {
			mc["exp"] = now.Add(cfg.ttl).Unix()
		}
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	delete(t.Header, "typ")
	for k, v := range cfg.header {
		t.Header[k] = v
	}

	signed, err := t.SignedString(key)
	if err != nil {
		return "", newError(&Error{Code: CodeGeneric}, "failed to sign token", err)
	}
	return signed, nil
}

// DecodeProtectedHeader returns the header of a token without verifying it.
func DecodeProtectedHeader(compact string) (Header, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, newError(ErrMalformed, "compact token must have three segments", nil)
	}
	var h Header
	if err := decodeSegment(parts[0], &h); err != nil {
		return nil, newError(ErrMalformed, "invalid protected header", err)
	}
	if h == nil {
		return nil, newError(ErrMalformed, "invalid protected header", errNotObject)
	}
	return h, nil
}

// DecodeClaims returns the payload of a token without verifying it.
func DecodeClaims(compact string) (Claims, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, newError(ErrMalformed, "compact token must have three segments", nil)
	}
	var c Claims
	if err := decodeSegment(parts[1], &c); err != nil {
		return nil, newError(ErrMalformed, "claims set must be a top-level JSON object", err)
	}
	if c == nil {
		return nil, newError(ErrMalformed, "claims set must be a top-level JSON object", errNotObject)
	}
	return c, nil
}

var errNotObject = errors.New("not a JSON object")

func decodeSegment(seg string, v interface{}) error {
	raw, err := b64url.Decode(seg)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

// String renders a claim for logs.
func (c Claims) String(name string) string {
	v, ok := c[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
