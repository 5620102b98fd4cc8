package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidURL is returned when a URL is missing, unparsable or not on the platform allow-list.
	ErrInvalidURL = errors.New("invalid video URL")

	// ErrEmptyQuery is returned when a search query is empty after trimming.
	ErrEmptyQuery = errors.New("no search query provided")

	// ErrUnsupportedFormat is returned when a download asks for an unknown target format.
	ErrUnsupportedFormat = errors.New("unsupported download format")

	// ErrNoStreams is returned when the extractor resolves a URL but finds nothing usable.
	ErrNoStreams = errors.New("no usable stream information")

	// ErrAuthRequired is returned when the platform demands a login or bot check.
	ErrAuthRequired = errors.New("platform requires authentication")

	// ErrExtractionFailed is returned when the extractor exits unsuccessfully.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrFileNotFound is returned when a produced file is missing on disk.
	ErrFileNotFound = errors.New("downloaded file not found")
)

// ErrorKind classifies errors into the categories handlers respond to.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindExtraction
	KindFilesystem
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindExtraction:
		return "extraction"
	case KindFilesystem:
		return "filesystem"
	default:
		return "internal"
	}
}

// BadRequestError is a caller error detected before any external call.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string {
	return "bad request: " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// NewBadRequestError creates a new BadRequestError.
func NewBadRequestError(err error) *BadRequestError {
	return &BadRequestError{Err: err}
}

// ExtractionError wraps an extractor failure with the operation and target.
type ExtractionError struct {
	Op     string
	Target string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Target != "" {
		return e.Op + " [" + e.Target + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(op, target string, err error) *ExtractionError {
	return &ExtractionError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

// FilesystemError wraps a local storage failure.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	var bad *BadRequestError
	var ext *ExtractionError
	var fs *FilesystemError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &bad):
		return KindBadRequest
	case errors.As(err, &ext):
		return KindExtraction
	case errors.As(err, &fs):
		return KindFilesystem
	default:
		return KindInternal
	}
}

// IsRetryable reports whether a read-only extraction may be attempted again.
// Caller errors and authentication walls will not improve on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindBadRequest {
		return false
	}
	if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrNoStreams) {
		return false
	}
	return true
}
