// Package apperr defines the closed set of error kinds surfaced by the
// detection pipeline and their mapping onto HTTP status codes.
//
// Every error that reaches the HTTP boundary is classified into exactly one
// Kind. StatusCode and PublicMessage are pure functions of the error value so
// the mapping can be tested without a transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota

	// KindFileRead means the uploaded bytes are not a decodable image.
	KindFileRead

	// KindDetectionInit means the detection model could not be initialized.
	// It is fatal at startup.
	KindDetectionInit

	// KindDetection means the model failed during inference on valid input.
	KindDetection

	// KindPersistence means the retention index could not be read or written.
	KindPersistence

	// KindStorage means the artifact store could not write or delete a file.
	KindStorage
)

// Default client-facing messages per kind.
const (
	MsgFileRead      = "INVALID MEDIA TYPE"
	MsgDetectionInit = "DETECTION MODEL INITIALIZATION ERROR"
	MsgDetection     = "DETECTION ERROR"
	MsgPersistence   = "DATABASE READ ERROR"
	MsgStorage       = "STORAGE ERROR"
	MsgUnknown       = "Unknown Error"
)

// String returns the kind's name as used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindFileRead:
		return "file_read"
	case KindDetectionInit:
		return "detection_init"
	case KindDetection:
		return "detection"
	case KindPersistence:
		return "persistence"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified application error. Message is safe to show to
// clients; Cause is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind. An empty message is replaced by
// the kind's default message.
func New(kind Kind, message string, cause error) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// FileRead wraps cause as a KindFileRead error.
func FileRead(cause error) *Error { return New(KindFileRead, "", cause) }

// DetectionInit wraps cause as a KindDetectionInit error.
func DetectionInit(cause error) *Error { return New(KindDetectionInit, "", cause) }

// Detection wraps cause as a KindDetection error.
func Detection(cause error) *Error { return New(KindDetection, "", cause) }

// Persistence wraps cause as a KindPersistence error.
func Persistence(cause error) *Error { return New(KindPersistence, "", cause) }

// Storage wraps cause as a KindStorage error.
func Storage(cause error) *Error { return New(KindStorage, "", cause) }

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps an error onto an HTTP status code. A nil error is 200.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindFileRead:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err. Causes and
// unclassified error text are never included.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindUnknown {
		return ae.Message
	}
	return MsgUnknown
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindFileRead:
		return MsgFileRead
	case KindDetectionInit:
		return MsgDetectionInit
	case KindDetection:
		return MsgDetection
	case KindPersistence:
		return MsgPersistence
	case KindStorage:
		return MsgStorage
	default:
		return MsgUnknown
	}
}
