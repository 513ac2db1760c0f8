// Package capture implements the multi-image capture session: exclusive
// ownership of a live stream, frame grabbing through validation and
// compression, device selection, and the mode state machine that arbitrates
// which capture surface is active.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/craigvandotcom/eatzone/internal/compress"
	"github.com/craigvandotcom/eatzone/internal/validate"
)

const (
	// DefaultMaxImages bounds how many images one session may hold;
	// reaching it triggers auto-submission.
	DefaultMaxImages = 5

	// DefaultSubmitDelay is the pause between hitting the image cap and
	// auto-submitting, long enough for the user to see the last thumbnail.
	DefaultSubmitDelay = 500 * time.Millisecond

	// frameQuality is the high-quality intermediate encoding applied to a
	// grabbed frame before it enters validation and compression.
	frameQuality = 95
)

var (
	// ErrNotReady rejects captures before the stream has reported real
	// frame dimensions. Rapid taps before the gate opens are refused, not
	// queued.
	ErrNotReady = errors.New("stream has not reported frame dimensions yet")

	// ErrAtCapacity marks a capture or upload attempted at the image cap;
	// the session is left unchanged.
	ErrAtCapacity = errors.New("capture session is at its image cap")

	// ErrBusy rejects interaction while a submission or device cycle is
	// in flight.
	ErrBusy = errors.New("capture session is busy")

	// ErrClosed marks use after teardown.
	ErrClosed = errors.New("capture session is closed")
)

// Compressor abstracts the compression engine so sessions can run against
// the worker pool or the in-process function interchangeably.
type Compressor interface {
	Compress(ctx context.Context, req compress.Request) (compress.Result, error)
}

// CompressorFunc adapts a plain function to Compressor.
type CompressorFunc func(ctx context.Context, req compress.Request) (compress.Result, error)

func (f CompressorFunc) Compress(ctx context.Context, req compress.Request) (compress.Result, error) {
	return f(ctx, req)
}

// Config wires a session's collaborators and tuning.
type Config struct {
	Opener     StreamOpener
	Selector   *Selector
	Compressor Compressor

	MaxImages   int
	TargetBytes int
	SubmitDelay time.Duration

	// OnAutoSubmit fires once, after SubmitDelay, when the image cap is
	// reached. The callback must drive the submit flow via BeginSubmit.
	OnAutoSubmit func()
}

// Session owns at most one live stream and the ordered captured images. It
// is created when the capture surface opens and torn down on close, cancel,
// or successful submit.
type Session struct {
	mu  sync.Mutex
	cfg Config

	stream  Stream
	state   State
	mode    Mode
	lastErr error

	images          []string
	submitScheduled bool
	prevMode        Mode
}

// NewSession builds an idle session in camera mode.
func NewSession(cfg Config) *Session {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	if cfg.TargetBytes <= 0 {
		cfg.TargetBytes = compress.DefaultTargetBytes
	}
	if cfg.SubmitDelay <= 0 {
		cfg.SubmitDelay = DefaultSubmitDelay
	}
	if cfg.Compressor == nil {
		cfg.Compressor = CompressorFunc(compress.Compress)
	}
	return &Session{cfg: cfg, state: StateIdle, mode: ModeCamera}
}

// Open acquires the stream for the currently selected device, consulting the
// persisted preference once per session. On failure the session enters the
// error state and remains retryable; the error is also returned so callers
// can surface it.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrClosed
	}
	if s.state == StateSubmitting || s.state == StateInitializing {
		return ErrBusy
	}

	if s.cfg.Selector != nil {
		s.cfg.Selector.Refresh(ctx)
		s.cfg.Selector.LoadPreferred()
	}

	s.state = StateInitializing
	if err := s.openStreamLocked(ctx); err != nil {
		s.state = StateError
		s.lastErr = err
		return cameraFailure(fmt.Errorf("failed to open camera stream: %w", err))
	}
	s.state = StateLive
	s.lastErr = nil
	return nil
}

// openStreamLocked stops any previous stream before acquiring a new one, so
// exactly one stream is ever open and frames never mix between devices.
func (s *Session) openStreamLocked(ctx context.Context) error {
	s.releaseStreamLocked()

	hint := DeviceHint{FacingMode: FacingEnvironment}
	if s.cfg.Selector != nil {
		hint = s.cfg.Selector.Hint()
	}
	stream, err := s.cfg.Opener.Open(ctx, hint)
	if err != nil {
		return err
	}
	s.stream = stream
	return nil
}

func (s *Session) releaseStreamLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		slog.Warn("failed to close stream", "err", err)
	}
	s.stream = nil
}

// Close tears the session down: stream stopped, images cleared, state
// terminal. Idempotent; safe on every exit path.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.releaseStreamLocked()
	s.images = nil
	s.state = StateClosed
}

// videoReadyLocked gates capture on the stream having reported a non-zero
// native resolution.
func (s *Session) videoReadyLocked() bool {
	if s.stream == nil {
		return false
	}
	w, h := s.stream.Dimensions()
	return w > 0 && h > 0
}

// CaptureFrame grabs the current frame at the stream's native resolution,
// encodes a high-quality intermediate, then pipes it through validation and
// compression before appending. Captures are rejected until the stream is
// ready and are a no-op at the image cap.
func (s *Session) CaptureFrame(ctx context.Context) (validate.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return validate.Outcome{}, ErrClosed
	}
	if s.state != StateLive {
		return validate.Outcome{}, ErrBusy
	}
	if s.mode != ModeCamera {
		return validate.Outcome{}, fmt.Errorf("capture requires camera mode, session is in %q", s.mode)
	}
	if !s.videoReadyLocked() {
		return validate.Outcome{}, ErrNotReady
	}
	if len(s.images) >= s.cfg.MaxImages {
		return validate.Outcome{}, ErrAtCapacity
	}

	s.state = StateCapturing
	defer func() {
		if s.state == StateCapturing {
			s.state = StateLive
		}
	}()

	img, err := s.stream.Grab()
	if err != nil {
		return validate.Outcome{}, cameraFailure(fmt.Errorf("failed to grab frame: %w", err))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameQuality}); err != nil {
		return validate.Outcome{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	raw := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	return s.ingestLocked(ctx, raw)
}

// AddUpload runs an externally-sourced image through the same validation
// and compression pipeline as captured frames. The camera stream, if any,
// is untouched.
func (s *Session) AddUpload(ctx context.Context, mimeType string, data []byte) (validate.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return validate.Outcome{}, ErrClosed
	}
	if s.state == StateSubmitting || s.state == StateInitializing || s.state == StateCapturing {
		return validate.Outcome{}, ErrBusy
	}
	if len(s.images) >= s.cfg.MaxImages {
		return validate.Outcome{}, ErrAtCapacity
	}

	payload := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return s.ingestLocked(ctx, payload)
}

// ingestLocked validates, compresses, re-validates, and appends one payload.
// Nothing unvalidated ever reaches the images sequence.
func (s *Session) ingestLocked(ctx context.Context, payload string) (validate.Outcome, error) {
	if out := validate.Image(payload); !out.Valid {
		return out, nil
	}

	res, err := s.cfg.Compressor.Compress(ctx, compress.Request{
		Payload:     payload,
		TargetBytes: s.cfg.TargetBytes,
	})
	if err != nil {
		return validate.Outcome{}, compressionFailure(err)
	}
	if out := validate.Image(res.Payload); !out.Valid {
		return validate.Outcome{}, fmt.Errorf("compressed payload failed validation: %w", out.Err)
	}

	s.images = append(s.images, res.Payload)
	slog.Debug("image added to session",
		"count", len(s.images), "bytes", res.CompressedBytes, "ratio", res.Ratio)

	if len(s.images) == s.cfg.MaxImages {
		s.scheduleAutoSubmitLocked()
	}
	return validate.Outcome{Valid: true}, nil
}

// scheduleAutoSubmitLocked arms the auto-submit timer once. The callback is
// suppressed if the session closed or dropped below the cap (an image was
// removed) before the delay elapsed.
func (s *Session) scheduleAutoSubmitLocked() {
	if s.submitScheduled || s.cfg.OnAutoSubmit == nil {
		return
	}
	s.submitScheduled = true
	delay := s.cfg.SubmitDelay
	go func() {
		time.Sleep(delay)
		s.mu.Lock()
		fire := s.state != StateClosed && len(s.images) == s.cfg.MaxImages
		s.submitScheduled = false
		s.mu.Unlock()
		if fire {
			s.cfg.OnAutoSubmit()
		}
	}()
}

// RemoveImage drops one captured image by index. The stream is unaffected.
func (s *Session) RemoveImage(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting || i < 0 || i >= len(s.images) {
		return false
	}
	s.images = append(s.images[:i], s.images[i+1:]...)
	return true
}

// Images returns the captured payloads in capture order.
func (s *Session) Images() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.images))
	copy(out, s.images)
	return out
}

// SetMode performs a user-driven mode transition, honoring the transition
// table and the interaction guards. Manual entry stops the stream; cancel
// tears the session down; upload leaves the camera running so the user can
// return to it.
func (s *Session) SetMode(to Mode) error {
	s.mu.Lock()

	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !interactive(s.state) {
		s.mu.Unlock()
		return ErrBusy
	}
	if !canTransition(s.mode, to, len(s.images) > 0) {
		from := s.mode
		s.mu.Unlock()
		return fmt.Errorf("invalid transition %q -> %q", from, to)
	}

	switch to {
	case ModeManual:
		s.releaseStreamLocked()
		s.mode = ModeManual
		s.mu.Unlock()
	case ModeCancel:
		s.mu.Unlock()
		s.Close()
	default:
		s.mode = to
		s.mu.Unlock()
	}
	return nil
}

// CycleDevice advances to the next camera. The old stream is fully stopped
// before the new one is opened, so no frames mix between devices. The
// session is non-interactive for the duration.
func (s *Session) CycleDevice(ctx context.Context) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return Device{}, ErrClosed
	}
	if s.state == StateSubmitting || s.state == StateInitializing || s.state == StateCapturing {
		return Device{}, ErrBusy
	}
	if s.cfg.Selector == nil || !s.cfg.Selector.CanCycle() {
		d, _ := s.currentDeviceLocked()
		return d, nil
	}

	s.state = StateInitializing
	d, _ := s.cfg.Selector.Cycle()
	if err := s.openStreamLocked(ctx); err != nil {
		s.state = StateError
		s.lastErr = err
		return d, cameraFailure(fmt.Errorf("failed to restart stream on %s: %w", d.ID, err))
	}
	s.state = StateLive
	return d, nil
}

func (s *Session) currentDeviceLocked() (Device, bool) {
	if s.cfg.Selector == nil {
		return Device{}, false
	}
	return s.cfg.Selector.Current()
}

// BeginSubmit freezes the session for submission and returns the images to
// send. The images stay owned by the session so a failed submission leaves
// them intact for retry.
func (s *Session) BeginSubmit() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, ErrClosed
	}
	if !interactive(s.state) {
		return nil, ErrBusy
	}
	if !canTransition(s.mode, ModeSubmit, len(s.images) > 0) {
		return nil, fmt.Errorf("invalid transition %q -> %q", s.mode, ModeSubmit)
	}

	s.prevMode = s.mode
	s.mode = ModeSubmit
	s.state = StateSubmitting

	out := make([]string, len(s.images))
	copy(out, s.images)
	return out, nil
}

// EndSubmit resolves a submission. Success clears the images and closes the
// session; failure restores the previous mode with all images intact.
func (s *Session) EndSubmit(success bool) {
	s.mu.Lock()
	if s.state != StateSubmitting {
		s.mu.Unlock()
		return
	}
	if success {
		s.images = nil
		s.mu.Unlock()
		s.Close()
		return
	}
	s.mode = s.prevMode
	s.state = StateLive
	if s.stream == nil {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode reports the active capture surface.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Err returns the last recorded camera failure, if the session is in the
// error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
