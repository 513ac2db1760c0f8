package capture

import "fmt"

// State is the session's explicit lifecycle state. A single tagged value
// replaces the boolean combinations (isLoading, isSubmitting, isPending,
// videoReady) that allowed impossible mixes like submitting while not live.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateLive
	StateCapturing
	StateSubmitting
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateCapturing:
		return "capturing"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mode is the user-facing capture surface currently active. Submit and
// cancel are transient actions, not resting modes.
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeUpload Mode = "upload"
	ModeManual Mode = "manual"
	ModeCancel Mode = "cancel"
	ModeSubmit Mode = "submit"
)

// canTransition encodes the mode transition table. Camera, upload, and
// manual may each cancel; any mode may hand off to manual or upload; submit
// requires at least one captured image and starts only from camera or
// upload. Terminal transitions (cancel, submit) are validated here and
// enacted by the session.
func canTransition(from, to Mode, hasImages bool) bool {
	switch to {
	case ModeCancel:
		return from == ModeCamera || from == ModeUpload || from == ModeManual
	case ModeManual, ModeUpload, ModeCamera:
		return true
	case ModeSubmit:
		return (from == ModeCamera || from == ModeUpload) && hasImages
	}
	return false
}

// interactive reports whether the session accepts user-driven transitions in
// the given state. Submission in flight and device cycling both lock the
// session, preventing overlapping mutation of the captured images.
func interactive(s State) bool {
	return s == StateLive || s == StateIdle || s == StateError
}
