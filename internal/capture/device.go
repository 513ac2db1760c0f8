package capture

import (
	"context"
	"image"
	"log/slog"
)

// PrefKeyDevice is the key under which the preferred camera device id is
// persisted across sessions.
const PrefKeyDevice = "preferred_camera_device"

// Device identifies one video-input device. Label may be empty before the
// platform has granted camera permission; callers must tolerate that.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Enumerator discovers available video-input devices.
type Enumerator interface {
	Devices(ctx context.Context) ([]Device, error)
}

// PreferenceStore is the single injectable home for the persisted device
// preference. Implementations must tolerate concurrent use; failures are
// treated as non-fatal by all callers here.
type PreferenceStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Stream is a live frame source exclusively owned by one capture session.
// Dimensions returns zeros until the stream has reported a real frame size;
// Grab before that point fails. Close is idempotent.
type Stream interface {
	Grab() (image.Image, error)
	Dimensions() (width, height int)
	Close() error
}

// DeviceHint describes what stream to open: an exact device id when one is
// selected, otherwise the environment-facing default.
type DeviceHint struct {
	DeviceID   string
	FacingMode string
}

// FacingEnvironment is the rear-camera fallback used when no exact device is
// selected.
const FacingEnvironment = "environment"

// StreamOpener acquires a stream for a device hint.
type StreamOpener interface {
	Open(ctx context.Context, hint DeviceHint) (Stream, error)
}

// Selector tracks the device roster and the currently selected device, and
// keeps the persisted preference in sync with manual cycling.
type Selector struct {
	enum    Enumerator
	prefs   PreferenceStore
	roster  []Device
	current int
	// prefLoaded ensures the persisted preference is applied at most once
	// per session open, so a stale preference cannot cause restart loops.
	prefLoaded bool
}

// NewSelector returns a selector over the given enumerator and preference
// store. prefs may be nil, degrading to session-only selection.
func NewSelector(enum Enumerator, prefs PreferenceStore) *Selector {
	return &Selector{enum: enum, prefs: prefs}
}

// Refresh re-enumerates devices. Enumeration failures are non-fatal: the
// previous roster is kept and the error is only logged.
func (s *Selector) Refresh(ctx context.Context) {
	devices, err := s.enum.Devices(ctx)
	if err != nil {
		slog.Warn("device enumeration failed, keeping current roster", "err", err)
		return
	}
	s.roster = devices
	if s.current >= len(s.roster) {
		s.current = 0
	}
}

// LoadPreferred applies the persisted device preference once per session.
// It reports whether the selection changed, which callers use to decide
// whether a stream restart is needed. Store failures are logged and ignored.
func (s *Selector) LoadPreferred() bool {
	if s.prefLoaded || s.prefs == nil {
		return false
	}
	s.prefLoaded = true

	id, ok, err := s.prefs.Get(PrefKeyDevice)
	if err != nil {
		slog.Warn("failed to read device preference", "err", err)
		return false
	}
	if !ok || id == "" {
		return false
	}
	for i, d := range s.roster {
		if d.ID == id {
			if i == s.current {
				return false
			}
			s.current = i
			return true
		}
	}
	return false
}

// Cycle advances to the next device circularly and persists the new
// preference. It is a no-op when fewer than two devices exist. A failed
// preference write is logged only.
func (s *Selector) Cycle() (Device, bool) {
	if len(s.roster) <= 1 {
		return Device{}, false
	}
	s.current = (s.current + 1) % len(s.roster)
	d := s.roster[s.current]
	if s.prefs != nil {
		if err := s.prefs.Set(PrefKeyDevice, d.ID); err != nil {
			slog.Warn("failed to persist device preference", "err", err)
		}
	}
	return d, true
}

// Current returns the selected device, if any.
func (s *Selector) Current() (Device, bool) {
	if s.current < 0 || s.current >= len(s.roster) {
		return Device{}, false
	}
	return s.roster[s.current], true
}

// Roster returns a copy of the known devices.
func (s *Selector) Roster() []Device {
	out := make([]Device, len(s.roster))
	copy(out, s.roster)
	return out
}

// CanCycle reports whether cycling is meaningful (more than one device).
func (s *Selector) CanCycle() bool {
	return len(s.roster) > 1
}

// Hint returns the stream hint for the current selection: the exact device
// id when one is selected, otherwise the environment-facing fallback.
func (s *Selector) Hint() DeviceHint {
	if d, ok := s.Current(); ok {
		return DeviceHint{DeviceID: d.ID}
	}
	return DeviceHint{FacingMode: FacingEnvironment}
}
