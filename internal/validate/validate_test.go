package validate

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func minimalJPEG() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("JFIF")...)
}

func minimalPNG() []byte {
	return append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, 0x00, 0x00)
}

func TestImage(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		valid    bool
		wantCode string
	}{
		{
			name:    "valid jpeg",
			payload: dataURI("image/jpeg", minimalJPEG()),
			valid:   true,
		},
		{
			name:    "valid png",
			payload: dataURI("image/png", minimalPNG()),
			valid:   true,
		},
		{
			name:     "empty payload",
			payload:  "",
			wantCode: CodeValidationError,
		},
		{
			name:     "not a data URI",
			payload:  "http://example.com/photo.jpg",
			wantCode: CodeInvalidDataFormat,
		},
		{
			name:     "uppercase MIME rejected",
			payload:  "data:IMAGE/JPEG;base64," + base64.StdEncoding.EncodeToString(minimalJPEG()),
			wantCode: CodeInvalidDataFormat,
		},
		{
			name:     "charset suffix rejected",
			payload:  "data:image/jpeg;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(minimalJPEG()),
			wantCode: CodeInvalidDataFormat,
		},
		{
			name:     "missing base64 marker",
			payload:  "data:image/jpeg," + base64.StdEncoding.EncodeToString(minimalJPEG()),
			wantCode: CodeInvalidDataFormat,
		},
		{
			name:     "undecodable base64",
			payload:  "data:image/jpeg;base64,!!!not-base64!!!",
			wantCode: CodeInvalidFileSignature,
		},
		{
			name:     "declared jpeg carries png bytes",
			payload:  dataURI("image/jpeg", minimalPNG()),
			wantCode: CodeInvalidFileSignature,
		},
		{
			name:     "unknown image subtype",
			payload:  dataURI("image/tiff", minimalJPEG()),
			wantCode: CodeUnknownMimeType,
		},
		{
			name:     "non-image MIME",
			payload:  dataURI("text/plain", []byte("hello")),
			wantCode: CodeInvalidDataFormat,
		},
		{
			name:     "truncated header",
			payload:  dataURI("image/png", []byte{0x89, 0x50}),
			wantCode: CodeInvalidFileSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Image(tt.payload)
			if out.Valid != tt.valid {
				t.Fatalf("Image() valid = %v, want %v (err: %v)", out.Valid, tt.valid, out.Err)
			}
			if !tt.valid && out.Err.Code != tt.wantCode {
				t.Errorf("Image() code = %s, want %s", out.Err.Code, tt.wantCode)
			}
		})
	}
}

func TestImageOversized(t *testing.T) {
	// ~1.5x the ceiling, with a real JPEG signature up front.
	data := append(minimalJPEG(), bytes.Repeat([]byte{0xAB}, MaxFileSize+MaxFileSize/2)...)
	out := Image(dataURI("image/jpeg", data))
	if out.Valid {
		t.Fatal("expected oversized image to be rejected")
	}
	if out.Err.Code != CodeFileTooLarge && out.Err.Code != CodeInvalidFileSignature {
		t.Errorf("unexpected code %s", out.Err.Code)
	}
}

func TestBatch(t *testing.T) {
	good := dataURI("image/jpeg", minimalJPEG())

	t.Run("empty batch is valid", func(t *testing.T) {
		out := Batch(nil)
		if !out.Valid {
			t.Errorf("empty batch should be valid, got %v", out.Err)
		}
	})

	t.Run("all valid", func(t *testing.T) {
		out := Batch([]string{good, good, good})
		if !out.Valid {
			t.Errorf("expected valid batch, got %v", out.Err)
		}
	})

	t.Run("reports first failure with 1-based position", func(t *testing.T) {
		out := Batch([]string{good, "garbage", "also garbage"})
		if out.Valid {
			t.Fatal("expected invalid batch")
		}
		if out.FailedIndex != 2 {
			t.Errorf("FailedIndex = %d, want 2", out.FailedIndex)
		}
		if !strings.Contains(out.Err.Message, "Image 2") {
			t.Errorf("message %q should reference Image 2", out.Err.Message)
		}
	})

	t.Run("failures reported in ascending original order", func(t *testing.T) {
		bad := dataURI("image/jpeg", minimalPNG())
		out := Batch([]string{bad, good, "garbage"})
		if out.FailedIndex != 1 {
			t.Errorf("FailedIndex = %d, want 1", out.FailedIndex)
		}
	})
}

func TestMatchesMagicNumbers(t *testing.T) {
	tests := []struct {
		name string
		mime string
		data []byte
		want bool
	}{
		{"jpeg", "image/jpeg", minimalJPEG(), true},
		{"png", "image/png", minimalPNG(), true},
		{"gif87a", "image/gif", []byte("GIF87a..."), true},
		{"gif89a", "image/gif", []byte("GIF89a..."), true},
		{"webp", "image/webp", append([]byte("RIFF"), []byte{0, 0, 0, 0, 'W', 'E', 'B', 'P'}...), true},
		{"webp missing tag", "image/webp", []byte("RIFF00000000"), false},
		{"jpeg bytes declared png", "image/png", minimalJPEG(), false},
		{"unknown mime", "image/bmp", []byte("BM"), false},
		{"empty data", "image/jpeg", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesMagicNumbers(tt.mime, tt.data); got != tt.want {
				t.Errorf("MatchesMagicNumbers(%s) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestFile(t *testing.T) {
	jpeg := minimalJPEG()
	encoded := base64.StdEncoding.EncodeToString(jpeg)

	tests := []struct {
		name     string
		filename string
		mime     string
		size     int64
		data     string
		valid    bool
		wantCode string
	}{
		{"valid upload", "lunch.jpg", "image/jpeg", int64(len(jpeg)), encoded, true, ""},
		{"missing filename", "", "image/jpeg", 10, encoded, false, CodeValidationError},
		{"reported size over ceiling", "big.jpg", "image/jpeg", MaxFileSize + 1, encoded, false, CodeFileTooLarge},
		{"unsupported type", "scan.tiff", "image/tiff", 10, encoded, false, CodeUnknownMimeType},
		{"signature mismatch", "fake.png", "image/png", int64(len(jpeg)), encoded, false, CodeInvalidFileSignature},
		{"bad base64", "broken.jpg", "image/jpeg", 10, "%%%", false, CodeInvalidFileSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := File(tt.filename, tt.mime, tt.size, tt.data)
			if out.Valid != tt.valid {
				t.Fatalf("File() valid = %v, want %v (err: %v)", out.Valid, tt.valid, out.Err)
			}
			if !tt.valid && out.Err.Code != tt.wantCode {
				t.Errorf("File() code = %s, want %s", out.Err.Code, tt.wantCode)
			}
		})
	}
}
