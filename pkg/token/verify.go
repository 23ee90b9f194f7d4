package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Result is a verified token.
type Result struct {
	Claims Claims
	Header Header
}

type verifyConfig struct {
	algorithms []string
	audience   []string
	issuer     []string
	subject    string
	required   []string
	maxAge     time.Duration
	tolerance  time.Duration
	now        func() time.Time
}

// VerifyOption customises Verify.
type VerifyOption func(*verifyConfig)

// WithAlgorithms replaces the accepted header algorithms. Defaults to HS256.
func WithAlgorithms(algs ...string) VerifyOption {
	return func(c *verifyConfig) { c.algorithms = algs }
}

// WithAudience requires "aud" to contain at least one of the given values.
func WithAudience(aud ...string) VerifyOption {
	return func(c *verifyConfig) { c.audience = aud }
}

// WithIssuer requires "iss" to equal one of the given values.
func WithIssuer(iss ...string) VerifyOption {
	return func(c *verifyConfig) { c.issuer = iss }
}

// WithSubject requires "sub" to equal sub.
func WithSubject(sub string) VerifyOption {
	return func(c *verifyConfig) { c.subject = sub }
}

// WithRequiredClaims fails verification when any of the named claims is absent.
func WithRequiredClaims(names ...string) VerifyOption {
	return func(c *verifyConfig) { c.required = append(c.required, names...) }
}

// WithMaxTokenAge bounds the age computed from "iat", which becomes required.
func WithMaxTokenAge(d time.Duration) VerifyOption {
	return func(c *verifyConfig) { c.maxAge = d }
}

// WithClockTolerance widens every time comparison by d.
func WithClockTolerance(d time.Duration) VerifyOption {
	return func(c *verifyConfig) { c.tolerance = d }
}

// WithTimeFunc overrides the clock used for time claims.
func WithTimeFunc(now func() time.Time) VerifyOption {
	return func(c *verifyConfig) { c.now = now }
}

// Verify checks the structure, algorithm and signature of compact against
// key and validates registered claims that are present.
func Verify(compact string, key []byte, opts ...VerifyOption) (*Result, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	cfg := verifyConfig{algorithms: []string{Algorithm}, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	header, err := DecodeProtectedHeader(compact)
	if err != nil {
		return nil, err
	}
	alg, _ := header["alg"].(string)
	if alg == "" {
		return nil, newError(ErrMalformed, "missing \"alg\" (Algorithm) Header Parameter", nil)
	}
	if !contains(cfg.algorithms, alg) {
		return nil, ErrAlgNotAllowed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(cfg.algorithms),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)
	parsed, err := parser.Parse(compact, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, newError(ErrMalformed, "", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, newError(&Error{Code: CodeGeneric}, "verification failed", err)
		}
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || mc == nil {
		return nil, newError(ErrMalformed, "claims set must be a top-level JSON object", nil)
	}
	claims := Claims(mc)

	if err := validateClaims(claims, &cfg); err != nil {
		return nil, err
	}

	return &Result{Claims: claims, Header: Header(parsed.Header)}, nil
}

func validateClaims(claims Claims, cfg *verifyConfig) error {
	mc := jwt.MapClaims(claims)

	required := cfg.required
	if cfg.maxAge > 0 {
		required = append(append([]string{}, required...), "iat")
	}
	if len(cfg.issuer) > 0 {
		required = append(required, "iss")
	}
	if cfg.subject != "" {
		required = append(required, "sub")
	}
	if len(cfg.audience) > 0 {
		required = append(required, "aud")
	}
	for _, name := range required {
		if _, ok := claims[name]; !ok {
			return claimErr(claims, name, ReasonMissing, fmt.Sprintf("missing required %q claim", name))
		}
	}

	if len(cfg.issuer) > 0 {
		iss, err := mc.GetIssuer()
		if err != nil || !contains(cfg.issuer, iss) {
			return claimErr(claims, "iss", ReasonCheckFailed, "unexpected \"iss\" claim value")
		}
	}
	if cfg.subject != "" {
		sub, err := mc.GetSubject()
		if err != nil || sub != cfg.subject {
			return claimErr(claims, "sub", ReasonCheckFailed, "unexpected \"sub\" claim value")
		}
	}
	if len(cfg.audience) > 0 {
		aud, err := mc.GetAudience()
		if err != nil || !intersects(cfg.audience, aud) {
			return claimErr(claims, "aud", ReasonCheckFailed, "unexpected \"aud\" claim value")
		}
	}

	now := float64(cfg.now().Unix())
	tol := cfg.tolerance.Seconds()

	iat, err := mc.GetIssuedAt()
	if err != nil {
		return claimErr(claims, "iat", ReasonInvalid, "\"iat\" claim must be a number")
	}
	nbf, err := mc.GetNotBefore()
	if err != nil {
		return claimErr(claims, "nbf", ReasonInvalid, "\"nbf\" claim must be a number")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return claimErr(claims, "exp", ReasonInvalid, "\"exp\" claim must be a number")
	}

	if nbf != nil && seconds(nbf) > now+tol {
		return claimErr(claims, "nbf", ReasonCheckFailed, "\"nbf\" claim timestamp check failed")
	}
	if exp != nil && seconds(exp) <= now-tol {
		return &ExpiredError{
			Claim:   "exp",
			Reason:  ReasonCheckFailed,
			Message: "\"exp\" claim timestamp check failed",
			Payload: claims,
		}
	}
	if cfg.maxAge > 0 && iat != nil {
		age := now - seconds(iat)
		if age-tol > cfg.maxAge.Seconds() {
			return &ExpiredError{
				Claim:   "iat",
				Reason:  ReasonCheckFailed,
				Message: "\"iat\" claim timestamp check failed (too far in the past)",
				Payload: claims,
			}
		}
		if age < -tol {
			return claimErr(claims, "iat", ReasonCheckFailed, "\"iat\" claim timestamp check failed (it should be in the past)")
		}
	}
	return nil
}

func claimErr(claims Claims, name, reason, msg string) error {
	return &ClaimValidationError{Claim: name, Reason: reason, Message: msg, Payload: claims}
}

func seconds(d *jwt.NumericDate) float64 {
	return float64(d.UnixNano()) / float64(time.Second)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(want []string, got []string) bool {
	for _, g := range got {
		if contains(want, g) {
			return true
		}
	}
	return false
}
