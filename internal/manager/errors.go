package manager

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a Manager client failure.
type Kind string

const (
	// KindAuth: credentials rejected or no session could be established.
	KindAuth Kind = "auth"
	// KindNotManager: an expected endpoint is absent; the host is probably
	// not a SOLARWATT Manager.
	KindNotManager Kind = "not_manager"
	// KindConnection: transport failure, timeout or unexpected HTTP status.
	KindConnection Kind = "connection"
	// KindProtocol: the response arrived but was not parseable JSON.
	KindProtocol Kind = "protocol"
)

// Error is the single failure type for all Manager client operations, so a
// poll failure can be reported uniformly. Status, ContentType, CookieNames
// and Snippet carry diagnostic context where available.
type Error struct {
	Kind        Kind
	Message     string
	Status      int
	ContentType string
	CookieNames []string
	Snippet     string
	cause       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status=%d", e.Status)
		if e.ContentType != "" {
			fmt.Fprintf(&b, ", content-type=%s", e.ContentType)
		}
		if len(e.CookieNames) > 0 {
			fmt.Fprintf(&b, ", cookies=%s", strings.Join(e.CookieNames, ","))
		}
		b.WriteString(")")
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, ": %s", e.Snippet)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// ErrKind returns the failure kind, or "" if err is not a Manager error.
func ErrKind(err error) Kind {
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Kind
	}
	return ""
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return ErrKind(err) == KindAuth }

// IsNotManager reports whether err indicates the host is not this appliance
// type.
func IsNotManager(err error) bool { return ErrKind(err) == KindNotManager }
