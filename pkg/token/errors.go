package token

import "errors"

// Error codes follow the JOSE library conventions so that clients written
// against either side can compare them.
const (
	CodeGeneric               = "ERR_JOSE_GENERIC"
	CodeClaimValidationFailed = "ERR_JWT_CLAIM_VALIDATION_FAILED"
	CodeExpired               = "ERR_JWT_EXPIRED"
	CodeAlgNotAllowed         = "ERR_JOSE_ALG_NOT_ALLOWED"
	CodeInvalid               = "ERR_JWT_INVALID"
	CodeSignatureVerifyFailed = "ERR_JWS_SIGNATURE_VERIFICATION_FAILED"
)

// Claim validation reasons.
const (
	ReasonCheckFailed = "check_failed"
	ReasonMissing     = "missing"
	ReasonInvalid     = "invalid"
)

// ErrGeneric matches every error produced by this package.
var ErrGeneric = errors.New("token: generic error")

var (
	// ErrMalformed reports missing segments, undecodable segments or claims
	// that are not a JSON object.
	ErrMalformed = &Error{Code: CodeInvalid, Message: "malformed compact token"}

	// ErrSignatureInvalid reports a signature that does not match the key.
	ErrSignatureInvalid = &Error{Code: CodeSignatureVerifyFailed, Message: "signature verification failed"}

	// ErrAlgNotAllowed reports a header alg outside the accepted set.
	ErrAlgNotAllowed = &Error{Code: CodeAlgNotAllowed, Message: "\"alg\" (Algorithm) Header Parameter value not allowed"}

	// ErrEmptyKey is returned when signing or verifying with an empty key.
	ErrEmptyKey = &Error{Code: CodeGeneric, Message: "key must not be empty"}
)

// Error is a structural or cryptographic token failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "token: " + e.Message + ": " + e.Err.Error()
	}
	return "token: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrGeneric and any *Error with the same specific code.
func (e *Error) Is(target error) bool {
	if target == ErrGeneric {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code && t.Code != CodeGeneric
	}
	return false
}

func newError(base *Error, msg string, cause error) *Error {
	if msg == "" {
		msg = base.Message
	}
	return &Error{Code: base.Code, Message: msg, Err: cause}
}

// ClaimValidationError reports a registered claim that failed validation.
type ClaimValidationError struct {
	Claim   string
	Reason  string
	Message string
	Payload map[string]interface{}
}

func (e *ClaimValidationError) Error() string { return "token: " + e.Message }

// Code returns CodeClaimValidationFailed.
func (e *ClaimValidationError) Code() string { return CodeClaimValidationFailed }

func (e *ClaimValidationError) Is(target error) bool { return target == ErrGeneric }

// ExpiredError reports an "exp" in the past, or an "iat" older than the
// allowed token age. It is deliberately distinct from ClaimValidationError.
type ExpiredError struct {
	Claim   string
	Reason  string
	Message string
	Payload map[string]interface{}
}

func (e *ExpiredError) Error() string { return "token: " + e.Message }

// Code returns CodeExpired.
func (e *ExpiredError) Code() string { return CodeExpired }

func (e *ExpiredError) Is(target error) bool { return target == ErrGeneric }

// IsExpired reports whether err carries an *ExpiredError.
func IsExpired(err error) bool {
	var expired *ExpiredError
	return errors.As(err, &expired)
}

// ErrorCode returns the code of any token error, or "" for foreign errors.
func ErrorCode(err error) string {
	var (
		te *Error
		ce *ClaimValidationError
		ee *ExpiredError
	)
	switch {
	case errors.As(err, &ee):
		return ee.Code()
	case errors.As(err, &ce):
		return ce.Code()
	case errors.As(err, &te):
		return te.Code
	}
	return ""
}
