package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

type fakeStream struct {
	w, h    int
	grabErr error
	closed  int
}

func (f *fakeStream) Grab() (image.Image, error) {
	if f.grabErr != nil {
		return nil, f.grabErr
	}
	img := image.NewRGBA(image.Rect(0, 0, f.w, f.h))
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255})
		}
	}
	return img, nil
}

func (f *fakeStream) Dimensions() (int, int) { return f.w, f.h }

func (f *fakeStream) Close() error {
	f.closed++
	return nil
}

type fakeOpener struct {
	next    *fakeStream
	err     error
	history []DeviceHint
}

func (f *fakeOpener) Open(ctx context.Context, hint DeviceHint) (Stream, error) {
	f.history = append(f.history, hint)
	if f.err != nil {
		return nil, f.err
	}
	if f.next == nil {
		f.next = &fakeStream{w: 64, h: 48}
	}
	return f.next, nil
}

func liveSession(t *testing.T, cfg Config) (*Session, *fakeOpener) {
	t.Helper()
	opener := &fakeOpener{next: &fakeStream{w: 64, h: 48}}
	cfg.Opener = opener
	s := NewSession(cfg)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s, opener
}

func TestOpenFailureIsRetryable(t *testing.T) {
	opener := &fakeOpener{err: errors.New("permission denied")}
	s := NewSession(Config{Opener: opener})

	err := s.Open(context.Background())
	if err == nil {
		t.Fatal("expected open failure")
	}
	if s.State() != StateError {
		t.Errorf("state = %v, want error", s.State())
	}
	if Classify(err) != FailureCamera {
		t.Errorf("Classify() = %v, want camera", Classify(err))
	}

	// Retry succeeds once the camera is available again.
	opener.err = nil
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("retry Open() error: %v", err)
	}
	if s.State() != StateLive {
		t.Errorf("state = %v, want live", s.State())
	}
}

func TestCaptureRejectedBeforeVideoReady(t *testing.T) {
	// Stream opens but has not reported frame dimensions yet.
	s, _ := func() (*Session, *fakeOpener) {
		opener := &fakeOpener{next: &fakeStream{w: 0, h: 0}}
		s := NewSession(Config{Opener: opener})
		if err := s.Open(context.Background()); err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		return s, opener
	}()

	if _, err := s.CaptureFrame(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("CaptureFrame() error = %v, want ErrNotReady", err)
	}
	if len(s.Images()) != 0 {
		t.Error("no image may be added before the stream is ready")
	}
}

func TestCaptureFrame(t *testing.T) {
	s, _ := liveSession(t, Config{})
	defer s.Close()

	out, err := s.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame() error: %v", err)
	}
	if !out.Valid {
		t.Fatalf("capture outcome invalid: %v", out.Err)
	}
	imgs := s.Images()
	if len(imgs) != 1 {
		t.Fatalf("images = %d, want 1", len(imgs))
	}
}

func TestCapOrderAndEnforcement(t *testing.T) {
	s, _ := liveSession(t, Config{MaxImages: 3, SubmitDelay: time.Hour})
	defer s.Close()

	for i := 0; i < 3; i++ {
		if _, err := s.CaptureFrame(context.Background()); err != nil {
			t.Fatalf("capture %d error: %v", i+1, err)
		}
	}
	if _, err := s.CaptureFrame(context.Background()); !errors.Is(err, ErrAtCapacity) {
		t.Errorf("capture at cap: error = %v, want ErrAtCapacity", err)
	}
	if len(s.Images()) != 3 {
		t.Errorf("images = %d, must not exceed cap 3", len(s.Images()))
	}

	// Uploads share the same cap.
	if _, err := s.AddUpload(context.Background(), "image/jpeg", []byte{0xFF, 0xD8, 0xFF}); !errors.Is(err, ErrAtCapacity) {
		t.Errorf("upload at cap: error = %v, want ErrAtCapacity", err)
	}
}

func TestAutoSubmitAtCap(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, _ := liveSession(t, Config{
		MaxImages:    2,
		SubmitDelay:  10 * time.Millisecond,
		OnAutoSubmit: func() { fired <- struct{}{} },
	})
	defer s.Close()

	for i := 0; i < 2; i++ {
		if _, err := s.CaptureFrame(context.Background()); err != nil {
			t.Fatalf("capture %d error: %v", i+1, err)
		}
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit did not fire after reaching the image cap")
	}
}

func TestAutoSubmitSuppressedAfterRemoval(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, _ := liveSession(t, Config{
		MaxImages:    2,
		SubmitDelay:  50 * time.Millisecond,
		OnAutoSubmit: func() { fired <- struct{}{} },
	})
	defer s.Close()

	for i := 0; i < 2; i++ {
		if _, err := s.CaptureFrame(context.Background()); err != nil {
			t.Fatalf("capture %d error: %v", i+1, err)
		}
	}
	if !s.RemoveImage(1) {
		t.Fatal("RemoveImage failed")
	}

	select {
	case <-fired:
		t.Error("auto-submit must not fire after dropping below the cap")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRemoveImageKeepsStream(t *testing.T) {
	opener := &fakeOpener{next: &fakeStream{w: 64, h: 48}}
	s := NewSession(Config{Opener: opener})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	if _, err := s.CaptureFrame(context.Background()); err != nil {
		t.Fatalf("capture error: %v", err)
	}
	s.RemoveImage(0)
	if opener.next.closed != 0 {
		t.Error("removing an image must not touch the stream")
	}
	if len(s.Images()) != 0 {
		t.Error("image was not removed")
	}
}

func TestUploadPipeline(t *testing.T) {
	s, _ := liveSession(t, Config{})
	defer s.Close()

	t.Run("rejects spoofed upload", func(t *testing.T) {
		png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}
		out, err := s.AddUpload(context.Background(), "image/jpeg", png)
		if err != nil {
			t.Fatalf("AddUpload() error: %v", err)
		}
		if out.Valid {
			t.Error("spoofed MIME type must fail validation")
		}
		if len(s.Images()) != 0 {
			t.Error("invalid upload must not be appended")
		}
	})
}

func TestModeTransitions(t *testing.T) {
	t.Run("manual stops the stream", func(t *testing.T) {
		opener := &fakeOpener{next: &fakeStream{w: 64, h: 48}}
		s := NewSession(Config{Opener: opener})
		if err := s.Open(context.Background()); err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		if err := s.SetMode(ModeManual); err != nil {
			t.Fatalf("SetMode(manual) error: %v", err)
		}
		if opener.next.closed == 0 {
			t.Error("manual entry must stop the stream")
		}
	})

	t.Run("upload keeps the stream running", func(t *testing.T) {
		opener := &fakeOpener{next: &fakeStream{w: 64, h: 48}}
		s := NewSession(Config{Opener: opener})
		if err := s.Open(context.Background()); err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		defer s.Close()
		if err := s.SetMode(ModeUpload); err != nil {
			t.Fatalf("SetMode(upload) error: %v", err)
		}
		if opener.next.closed != 0 {
			t.Error("upload mode must keep the camera running")
		}
	})

	t.Run("cancel closes the session", func(t *testing.T) {
		s, opener := liveSession(t, Config{})
		if err := s.SetMode(ModeCancel); err != nil {
			t.Fatalf("SetMode(cancel) error: %v", err)
		}
		if s.State() != StateClosed {
			t.Errorf("state = %v, want closed", s.State())
		}
		if opener.next.closed == 0 {
			t.Error("cancel must stop the stream")
		}
		// No state is re-entered after termination.
		if err := s.SetMode(ModeCamera); !errors.Is(err, ErrClosed) {
			t.Errorf("SetMode after close: error = %v, want ErrClosed", err)
		}
	})

	t.Run("submit requires images", func(t *testing.T) {
		s, _ := liveSession(t, Config{})
		defer s.Close()
		if _, err := s.BeginSubmit(); err == nil {
			t.Error("submit with no images must be rejected")
		}
	})
}

func TestSubmitLifecycle(t *testing.T) {
	s, _ := liveSession(t, Config{})
	if _, err := s.CaptureFrame(context.Background()); err != nil {
		t.Fatalf("capture error: %v", err)
	}

	batch, err := s.BeginSubmit()
	if err != nil {
		t.Fatalf("BeginSubmit() error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch = %d images, want 1", len(batch))
	}

	// All interaction is locked while submitting.
	if _, err := s.CaptureFrame(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("capture while submitting: error = %v, want ErrBusy", err)
	}
	if err := s.SetMode(ModeManual); !errors.Is(err, ErrBusy) {
		t.Errorf("SetMode while submitting: error = %v, want ErrBusy", err)
	}
	if _, err := s.CycleDevice(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("CycleDevice while submitting: error = %v, want ErrBusy", err)
	}

	// A failed submission leaves the captured images intact for retry.
	s.EndSubmit(false)
	if len(s.Images()) != 1 {
		t.Error("failed submission must not drop captured work")
	}

	// A successful submission clears state and closes the session.
	if _, err := s.BeginSubmit(); err != nil {
		t.Fatalf("second BeginSubmit() error: %v", err)
	}
	s.EndSubmit(true)
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful submit", s.State())
	}
	if len(s.Images()) != 0 {
		t.Error("images must be cleared after successful submit")
	}
}

func TestCycleDeviceRestartsStream(t *testing.T) {
	first := &fakeStream{w: 64, h: 48}
	opener := &fakeOpener{next: first}
	enum := &fakeEnumerator{devices: threeDevices()}
	sel := NewSelector(enum, newFakePrefs())

	s := NewSession(Config{Opener: opener, Selector: sel})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	opener.next = &fakeStream{w: 128, h: 96}
	d, err := s.CycleDevice(context.Background())
	if err != nil {
		t.Fatalf("CycleDevice() error: %v", err)
	}
	if d.ID != "cam-1" {
		t.Errorf("cycled to %s, want cam-1", d.ID)
	}
	if first.closed == 0 {
		t.Error("old stream must be stopped before the new one is trusted")
	}
	if got := opener.history[len(opener.history)-1].DeviceID; got != "cam-1" {
		t.Errorf("new stream opened for %q, want cam-1", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, opener := liveSession(t, Config{})
	s.Close()
	s.Close()
	if opener.next.closed != 1 {
		t.Errorf("stream closed %d times, want 1", opener.next.closed)
	}
}
