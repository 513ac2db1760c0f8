// Package compress normalizes captured or uploaded images into a byte and
// dimension budget using a progressive-quality search. All output is JPEG
// regardless of source format; transparency and lossless fidelity are
// deliberately traded away for size.
package compress

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/craigvandotcom/eatzone/internal/validate"
)

const (
	// DefaultTargetBytes is the engine's nominal per-image budget.
	DefaultTargetBytes = 1024 * 1024

	// PlatformBodyLimit is the downstream transport's hard request-body
	// ceiling (serverless function limit). The sum of all images plus the
	// JSON envelope must stay under it.
	PlatformBodyLimit = 4 * 1024 * 1024

	// envelopeAllowance reserves room for the JSON wrapper around the
	// base64 payloads.
	envelopeAllowance = 64 * 1024

	qualityDecrement = 0.15
	qualityFloor     = 0.1
	maxAttempts      = 8
)

// Request describes one compression call. TargetBytes defaults to
// DefaultTargetBytes; MaxWidth/MaxHeight and Quality are optional overrides
// of the size-based strategy.
type Request struct {
	Payload     string
	TargetBytes int
	MaxWidth    int
	MaxHeight   int
	Quality     float64
}

// Result is the outcome of one compression call.
type Result struct {
	Payload         string
	OriginalBytes   int
	CompressedBytes int
	Quality         float64
	Ratio           float64
	Width           int
	Height          int
	// Skipped is true when the input was already within budget and was
	// returned byte-for-byte unchanged.
	Skipped bool
	// Oversized is true when even the aggressive transport pass could not
	// meet the platform-safe budget and the result is returned anyway.
	Oversized bool
	// AttemptSizes records the encoded size of each quality attempt, in
	// order. Sizes are non-increasing as quality steps down.
	AttemptSizes []int
}

// Compress shrinks a single data-URI image to fit req.TargetBytes.
//
// If the input already fits it is returned unchanged with ratio 1.0; an
// already-compliant image is never re-encoded. Otherwise the image is
// optionally downscaled (aspect preserved, never upsized) and re-encoded as
// JPEG, stepping quality down until the target is met or attempts are
// exhausted. The call always terminates; when the target is unreachable the
// smallest attempt is returned as best effort.
func Compress(ctx context.Context, req Request) (Result, error) {
	target := req.TargetBytes
	if target <= 0 {
		target = DefaultTargetBytes
	}

	mime, data, verr := validate.ParseDataURI(req.Payload)
	if verr != nil {
		return Result{}, fmt.Errorf("invalid input payload: %w", verr)
	}
	origSize := len(data)

	if origSize <= target {
		return Result{
			Payload:         req.Payload,
			OriginalBytes:   origSize,
			CompressedBytes: origSize,
			Quality:         1.0,
			Ratio:           1.0,
			Skipped:         true,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s image: %w", mime, err)
	}

	maxDim, quality := strategyFor(origSize, target)
	if req.MaxWidth > 0 || req.MaxHeight > 0 {
		maxDim = 0
	}
	if req.Quality > 0 {
		quality = req.Quality
	}
	maxW, maxH := maxDim, maxDim
	if req.MaxWidth > 0 {
		maxW = req.MaxWidth
	}
	if req.MaxHeight > 0 {
		maxH = req.MaxHeight
	}

	img = scaleDown(img, maxW, maxH)
	bounds := img.Bounds()

	var (
		best     []byte
		bestQ    float64
		attempts []int
	)
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode attempt %d: %w", i+1, err)
		}
		attempts = append(attempts, len(encoded))
		if best == nil || len(encoded) < len(best) {
			best = encoded
			bestQ = quality
		}
		if len(encoded) <= target || quality <= qualityFloor {
			break
		}
		quality = math.Max(qualityFloor, quality-qualityDecrement)
	}

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(best)
	if out := validate.Image(payload); !out.Valid {
		return Result{}, fmt.Errorf("compressed output failed validation: %w", out.Err)
	}

	return Result{
		Payload:         payload,
		OriginalBytes:   origSize,
		CompressedBytes: len(best),
		Quality:         bestQ,
		Ratio:           float64(len(best)) / float64(origSize),
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		AttemptSizes:    attempts,
	}, nil
}

// ForTransport compresses one image of an imageCount-wide batch so the whole
// request stays under PlatformBodyLimit. The effective per-image target is
// capped below the nominal budget; if a first pass still exceeds it, a more
// aggressive second pass (quality x0.7, dimensions x0.8) is attempted. A
// result that is oversized even then is returned with Oversized set rather
// than blocking the caller; the transport limit is treated as a soft budget.
func ForTransport(ctx context.Context, payload string, imageCount int) (Result, error) {
	if imageCount < 1 {
		imageCount = 1
	}
	// Base64 inflates by 4/3, so the raw-byte budget is 3/4 of the share.
	share := (PlatformBodyLimit - envelopeAllowance) / imageCount
	safeTarget := share * 3 / 4
	if safeTarget > DefaultTargetBytes {
		safeTarget = DefaultTargetBytes
	}

	res, err := Compress(ctx, Request{Payload: payload, TargetBytes: safeTarget})
	if err != nil {
		return Result{}, err
	}
	if res.CompressedBytes <= safeTarget {
		return res, nil
	}

	second, err := Compress(ctx, Request{
		Payload:     res.Payload,
		TargetBytes: safeTarget,
		Quality:     res.Quality * 0.7,
		MaxWidth:    int(float64(res.Width) * 0.8),
		MaxHeight:   int(float64(res.Height) * 0.8),
	})
	if err != nil {
		return Result{}, err
	}
	second.OriginalBytes = res.OriginalBytes
	second.Ratio = float64(second.CompressedBytes) / float64(res.OriginalBytes)
	if second.CompressedBytes > safeTarget {
		slog.Warn("image exceeds platform-safe size after aggressive pass, sending anyway",
			"bytes", second.CompressedBytes, "target", safeTarget)
		second.Oversized = true
	}
	return second, nil
}

// strategyFor picks a resize bound and starting quality from how far the
// original overshoots the target.
func strategyFor(origSize, target int) (maxDim int, quality float64) {
	switch {
	case origSize > 4*target:
		return 1920, 0.8
	case origSize > 2*target:
		return 2048, 0.85
	default:
		return 0, 0.9
	}
}

// scaleDown resizes img to fit within maxW x maxH, preserving aspect ratio.
// It never upsizes. Zero bounds mean no constraint on that axis.
func scaleDown(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return img
	}

	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
