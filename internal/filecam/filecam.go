// Package filecam provides a filesystem-backed camera source. Each
// subdirectory of the root is one "device" whose image files are served
// as frames in name order, looping. It exists so the capture pipeline
// can be driven end to end from the command line without real camera
// hardware.
package filecam

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/craigvandotcom/eatzone/internal/capture"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Source enumerates directory devices and opens frame streams. It
// implements both capture.Enumerator and capture.StreamOpener.
type Source struct {
	root string
}

func New(root string) *Source {
	return &Source{root: root}
}

// Devices lists each subdirectory containing at least one image file.
func (s *Source) Devices(ctx context.Context) ([]capture.Device, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera root: %w", err)
	}

	var devices []capture.Device
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		frames, err := listFrames(filepath.Join(s.root, entry.Name()))
		if err != nil || len(frames) == 0 {
			continue
		}
		devices = append(devices, capture.Device{
			ID:    entry.Name(),
			Label: entry.Name(),
		})
	}
	return devices, nil
}

// Open starts a stream for the hinted device. When no device id is
// given the first available device is used, matching how a browser
// resolves a facing-mode-only constraint.
func (s *Source) Open(ctx context.Context, hint capture.DeviceHint) (capture.Stream, error) {
	id := hint.DeviceID
	if id == "" {
		devices, err := s.Devices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("no camera devices under %s", s.root)
		}
		id = devices[0].ID
	}

	frames, err := listFrames(filepath.Join(s.root, id))
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", id, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("device %s has no frames", id)
	}

	// Decode the first frame up front so Dimensions reports real values
	// as soon as the stream opens.
	first, err := decodeFrame(frames[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode first frame of %s: %w", id, err)
	}

	return &stream{frames: frames, next: first}, nil
}

type stream struct {
	mu     sync.Mutex
	frames []string
	index  int
	next   image.Image
	closed bool
}

func (s *stream) Grab() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("stream is closed")
	}

	frame := s.next
	if frame == nil {
		var err error
		frame, err = decodeFrame(s.frames[s.index])
		if err != nil {
			return nil, err
		}
	}
	s.next = nil
	s.index = (s.index + 1) % len(s.frames)
	return frame, nil
}

func (s *stream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0
	}
	frame := s.next
	if frame == nil {
		decoded, err := decodeFrame(s.frames[s.index])
		if err != nil {
			return 0, 0
		}
		s.next = decoded
		frame = decoded
	}
	bounds := frame.Bounds()
	return bounds.Dx(), bounds.Dy()
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.next = nil
	return nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			frames = append(frames, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

func decodeFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
