package common

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors for the failure taxonomy. Code throughout the
// services wraps these with fmt.Errorf("%w: ...") so callers can
// classify failures with errors.Is.
var (
	// ErrUnsupportedAlgorithm means a signing algorithm outside the
	// set in constants.SigningAlgorithms was requested.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrSigningFailure means the underlying crypto provider rejected
	// the signing operation, usually a key/algorithm mismatch.
	ErrSigningFailure = errors.New("signing operation failed")

	// ErrMissingKey means signing was attempted with no key handle.
	ErrMissingKey = errors.New("no signing key supplied")

	// ErrModuleLoadFailure means the codec worker could not compile
	// the codec module bytes.
	ErrModuleLoadFailure = errors.New("cannot load codec module")

	// ErrNoManifestFound means the asset carries no provenance manifest.
	ErrNoManifestFound = errors.New("no manifest found in asset")

	// ErrMalformedManifest means a manifest is present but unparsable.
	ErrMalformedManifest = errors.New("manifest is malformed")

	// ErrAssetMismatch means a detached manifest's binding does not
	// match the asset it was presented with.
	ErrAssetMismatch = errors.New("detached manifest does not match asset")

	// ErrTrustBootstrapFailure means we could not fetch or parse the
	// certificate bundle or private key. This is batch-fatal.
	ErrTrustBootstrapFailure = errors.New("trust bootstrap failed")

	// ErrIOFailure means a read from an asset source or a write to an
	// output sink failed.
	ErrIOFailure = errors.New("i/o failure")
)

type DetailedError interface {
	Detail() string
}

// Error is a custom error type that includes some additional fields
// to help us debug. See the Detail method.
type Error struct {
	// Kind is one of the sentinel errors above. errors.Is matches
	// against it through Unwrap.
	Kind    error
	Err     error
	File    string
	IsFatal bool
	Line    int
	Message string
}

func NewError(kind error, message string, err error, isFatal bool) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Kind:    kind,
		Err:     err,
		File:    file,
		IsFatal: isFatal,
		Line:    line,
		Message: message,
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func (e *Error) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
	}
	return e.Message
}

// This returns a detailed error message.
func (e *Error) Detail() string {
	prefix := ""
	if e.IsFatal {
		prefix = "FATAL: "
	}
	underlyingError := ""
	if e.Err != nil {
		underlyingError = fmt.Sprintf("(Underlying error: %s)", e.Err.Error())
	}
	return fmt.Sprintf("%s%s [%s:%d] %s",
		prefix, e.Error(), e.File, e.Line, underlyingError)
}
