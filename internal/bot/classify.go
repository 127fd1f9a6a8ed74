package bot

import (
	"regexp"
	"strings"
)

// ErrorKind buckets low-level connection errors by how the session must
// react.
type ErrorKind int

const (
	// ErrorIgnorable is benign protocol noise: swallowed, never surfaced.
	ErrorIgnorable ErrorKind = iota
	// ErrorAuthChallenge is a device-auth prompt, surfaced as its own event.
	ErrorAuthChallenge
	// ErrorTimeout is a connect-timeout: terminates the session and
	// suppresses auto-reconnect.
	ErrorTimeout
	// ErrorGeneric is reported per-account and is non-fatal to the registry.
	ErrorGeneric
)

type ClassifiedError struct {
	Kind    ErrorKind
	Message string
	// Code is the human-entry device-auth code, set for ErrorAuthChallenge.
	Code string
}

// Known benign parser/protocol noise the underlying library emits on some
// servers. Matching errors are dropped at the session boundary.
var ignorableFragments = []string{
	"Chunk size is",
	"unknown chat format code",
	"Cannot read properties of undefined",
	"PartialReadError",
}

var (
	authChallengeMarker = "https://www.microsoft.com/link"
	authCodePattern     = regexp.MustCompile(`use the code ([A-Z0-9]+)`)
	timeoutMarker       = "connection timed out"
)

// Classify maps a raw connection error message onto the session's error
// taxonomy.
func Classify(message string) ClassifiedError {
	for _, fragment := range ignorableFragments {
		if strings.Contains(message, fragment) {
			return ClassifiedError{Kind: ErrorIgnorable, Message: message}
		}
	}

	if strings.Contains(message, authChallengeMarker) {
		code := "N/A"
		if m := authCodePattern.FindStringSubmatch(message); m != nil {
			code = m[1]
		}
		return ClassifiedError{Kind: ErrorAuthChallenge, Message: message, Code: code}
	}

	if strings.Contains(message, timeoutMarker) {
		return ClassifiedError{Kind: ErrorTimeout, Message: message}
	}

	return ClassifiedError{Kind: ErrorGeneric, Message: message}
}
