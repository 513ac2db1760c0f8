package capture

import (
	"errors"

	"github.com/craigvandotcom/eatzone/internal/validate"
)

// FailureKind classifies a pipeline failure so the surface above can show a
// tailored message with the right recovery affordances.
type FailureKind string

const (
	FailureCamera      FailureKind = "camera"
	FailureCompression FailureKind = "compression"
	FailureValidation  FailureKind = "validation"
	FailureUpload      FailureKind = "upload"
	FailureUnknown     FailureKind = "unknown"
)

// Failure tags an underlying error with its classification.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func cameraFailure(err error) error      { return &Failure{Kind: FailureCamera, Err: err} }
func compressionFailure(err error) error { return &Failure{Kind: FailureCompression, Err: err} }

// Classify maps an error from the capture pipeline to its failure kind.
func Classify(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	var verr *validate.Error
	if errors.As(err, &verr) {
		return FailureValidation
	}
	if errors.Is(err, ErrNotReady) {
		return FailureCamera
	}
	return FailureUnknown
}

// UserMessage renders a dismissible, user-facing message for a failure kind.
// All of these are recoverable: the capture flow is never crashed by them.
func UserMessage(kind FailureKind) string {
	switch kind {
	case FailureCamera:
		return "Could not access the camera. Try again, or switch to manual entry."
	case FailureCompression:
		return "Could not process that photo. Try taking it again."
	case FailureValidation:
		return "That file does not look like a supported image."
	case FailureUpload:
		return "Upload failed. Check the file and try again."
	}
	return "Something went wrong. Try again or cancel."
}

// Retryable reports whether the failure kind offers a try-again affordance.
func Retryable(kind FailureKind) bool {
	return kind != FailureUnknown
}
