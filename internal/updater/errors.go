package updater

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an update failure so callers can branch on it instead of
// on message text.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfigCorrupt
	KindPersistenceFailed
	KindRemoteUnavailable
	KindMalformedRelease
	KindAssetUnavailable
	KindCorruptArchive
	KindUnsupportedPlatform
	KindSwapAborted
	KindSwapIncomplete
	KindInitialInstallRequiresNetwork
	KindUserAborted
	KindLockHeld
)

var kindNames = map[Kind]string{
	KindUnknown:                       "unknown",
	KindConfigCorrupt:                 "config corrupt",
	KindPersistenceFailed:             "persistence failed",
	KindRemoteUnavailable:             "remote unavailable",
	KindMalformedRelease:              "malformed release",
	KindAssetUnavailable:              "asset unavailable",
	KindCorruptArchive:                "corrupt archive",
	KindUnsupportedPlatform:           "unsupported platform",
	KindSwapAborted:                   "swap aborted",
	KindSwapIncomplete:                "swap incomplete",
	KindInitialInstallRequiresNetwork: "initial install requires network",
	KindUserAborted:                   "user aborted",
	KindLockHeld:                      "update already in progress",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is the failure type returned by every updater component. URL and Path
// name the offending resource when there is one.
type Error struct {
	Kind Kind
	URL  string
	Path string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrConfigCorrupt                 = &Error{Kind: KindConfigCorrupt}
	ErrPersistenceFailed             = &Error{Kind: KindPersistenceFailed}
	ErrRemoteUnavailable             = &Error{Kind: KindRemoteUnavailable}
	ErrMalformedRelease              = &Error{Kind: KindMalformedRelease}
	ErrAssetUnavailable              = &Error{Kind: KindAssetUnavailable}
	ErrCorruptArchive                = &Error{Kind: KindCorruptArchive}
	ErrUnsupportedPlatform           = &Error{Kind: KindUnsupportedPlatform}
	ErrSwapAborted                   = &Error{Kind: KindSwapAborted}
	ErrSwapIncomplete                = &Error{Kind: KindSwapIncomplete}
	ErrInitialInstallRequiresNetwork = &Error{Kind: KindInitialInstallRequiresNetwork}
	ErrUserAborted                   = &Error{Kind: KindUserAborted}
	ErrLockHeld                      = &Error{Kind: KindLockHeld}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " <%s>", e.URL)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func urlError(kind Kind, url, msg string, err error) *Error {
	return &Error{Kind: kind, URL: url, Msg: msg, Err: err}
}

func pathError(kind Kind, path, msg string, err error) *Error {
	return &Error{Kind: kind, Path: path, Msg: msg, Err: err}
}
