package compress

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/craigvandotcom/eatzone/internal/validate"
)

// noisyImage builds an image that resists JPEG compression so size targets
// actually bite.
func noisyImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func noisyJPEGURI(t *testing.T, w, h int, quality int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noisyImage(w, h), &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func payloadBytes(t *testing.T, payload string) int {
	t.Helper()
	_, data, verr := validate.ParseDataURI(payload)
	if verr != nil {
		t.Fatalf("bad payload: %v", verr)
	}
	return len(data)
}

func TestCompressSkipsCompliantInput(t *testing.T) {
	payload := noisyJPEGURI(t, 64, 64, 80)
	size := payloadBytes(t, payload)

	res, err := Compress(context.Background(), Request{Payload: payload, TargetBytes: size * 2})
	if err != nil {
		t.Fatalf("Compress() error: %v", err)
	}
	if !res.Skipped {
		t.Error("expected skip for already-compliant input")
	}
	if res.Payload != payload {
		t.Error("skipped input must be returned byte-for-byte unchanged")
	}
	if res.Ratio != 1.0 {
		t.Errorf("Ratio = %v, want 1.0", res.Ratio)
	}
}

func TestCompressMeetsTarget(t *testing.T) {
	payload := noisyJPEGURI(t, 600, 400, 100)
	orig := payloadBytes(t, payload)
	target := orig / 2

	res, err := Compress(context.Background(), Request{Payload: payload, TargetBytes: target})
	if err != nil {
		t.Fatalf("Compress() error: %v", err)
	}
	if res.Skipped {
		t.Fatal("should not skip an oversized input")
	}
	if res.CompressedBytes > target {
		t.Errorf("CompressedBytes = %d, want <= %d", res.CompressedBytes, target)
	}
	if !strings.HasPrefix(res.Payload, "data:image/jpeg;base64,") {
		t.Error("output must be a JPEG data URI")
	}
	if out := validate.Image(res.Payload); !out.Valid {
		t.Errorf("output failed validation: %v", out.Err)
	}
	if res.Ratio <= 0 || res.Ratio >= 1 {
		t.Errorf("Ratio = %v, want in (0, 1)", res.Ratio)
	}
}

func TestCompressAlwaysReencodesToJPEG(t *testing.T) {
	// A PNG over target must come back as JPEG.
	var buf bytes.Buffer
	img := noisyImage(300, 300)
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	res, err := Compress(context.Background(), Request{Payload: payload, TargetBytes: 1024})
	if err != nil {
		t.Fatalf("Compress() error: %v", err)
	}
	if !strings.HasPrefix(res.Payload, "data:image/jpeg;base64,") {
		t.Error("PNG input must be re-encoded as JPEG")
	}
}

func TestCompressMonotonicAttempts(t *testing.T) {
	payload := noisyJPEGURI(t, 500, 500, 100)

	// A tiny target forces the full quality ladder.
	res, err := Compress(context.Background(), Request{Payload: payload, TargetBytes: 1})
	if err != nil {
		t.Fatalf("Compress() error: %v", err)
	}
	if len(res.AttemptSizes) == 0 || len(res.AttemptSizes) > 8 {
		t.Fatalf("attempts = %d, want 1..8", len(res.AttemptSizes))
	}
	for i := 1; i < len(res.AttemptSizes); i++ {
		if res.AttemptSizes[i] > res.AttemptSizes[i-1] {
			t.Errorf("attempt %d grew: %d > %d", i+1, res.AttemptSizes[i], res.AttemptSizes[i-1])
		}
	}
	// Unreachable target still terminates with a best-effort result.
	if res.CompressedBytes == 0 {
		t.Error("expected best-effort output for unreachable target")
	}
}

func TestCompressNeverUpsizes(t *testing.T) {
	payload := noisyJPEGURI(t, 200, 150, 100)
	orig := payloadBytes(t, payload)

	res, err := Compress(context.Background(), Request{Payload: payload, TargetBytes: orig / 3})
	if err != nil {
		t.Fatalf("Compress() error: %v", err)
	}
	if res.Width > 200 || res.Height > 150 {
		t.Errorf("dimensions grew to %dx%d", res.Width, res.Height)
	}
}

func TestCompressRejectsMalformedInput(t *testing.T) {
	if _, err := Compress(context.Background(), Request{Payload: "not an image"}); err == nil {
		t.Error("expected error for malformed payload")
	}
	// Valid data URI shape but undecodable image bytes.
	junk := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xFF, 0xD8, 0xFF, 0x00}, 4096))
	if _, err := Compress(context.Background(), Request{Payload: junk, TargetBytes: 16}); err == nil {
		t.Error("expected error for undecodable image")
	}
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		target      int
		wantDim     int
		wantQuality float64
	}{
		{"over 4x", 5 * 1024, 1024, 1920, 0.8},
		{"over 2x", 3 * 1024, 1024, 2048, 0.85},
		{"under 2x", 1500, 1024, 0, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim, q := strategyFor(tt.size, tt.target)
			if dim != tt.wantDim || q != tt.wantQuality {
				t.Errorf("strategyFor(%d, %d) = (%d, %v), want (%d, %v)",
					tt.size, tt.target, dim, q, tt.wantDim, tt.wantQuality)
			}
		})
	}
}

func TestForTransport(t *testing.T) {
	payload := noisyJPEGURI(t, 800, 600, 100)

	res, err := ForTransport(context.Background(), payload, 3)
	if err != nil {
		t.Fatalf("ForTransport() error: %v", err)
	}
	if out := validate.Image(res.Payload); !out.Valid {
		t.Fatalf("transport output failed validation: %v", out.Err)
	}
	safeTarget := (PlatformBodyLimit - envelopeAllowance) / 3 * 3 / 4
	if res.CompressedBytes > safeTarget && !res.Oversized {
		t.Error("result over the platform-safe budget must be flagged Oversized")
	}
}

func TestEngineCompress(t *testing.T) {
	e := NewEngine(2)
	defer e.Close()

	payload := noisyJPEGURI(t, 300, 300, 100)
	orig := payloadBytes(t, payload)

	res, err := e.Compress(context.Background(), Request{Payload: payload, TargetBytes: orig / 2})
	if err != nil {
		t.Fatalf("Engine.Compress() error: %v", err)
	}
	if res.CompressedBytes > orig/2 {
		t.Errorf("CompressedBytes = %d, want <= %d", res.CompressedBytes, orig/2)
	}
}

func TestEngineHonorsCancellation(t *testing.T) {
	e := NewEngine(1)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := noisyJPEGURI(t, 64, 64, 80)
	if _, err := e.Compress(ctx, Request{Payload: payload, TargetBytes: 1}); err == nil {
		t.Error("expected context error after cancellation")
	}
}
