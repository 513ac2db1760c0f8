// Package validate performs structural validation of image payloads before
// they are allowed into a capture session or a submission batch. Every image
// crosses this boundary as a data URI: data:image/<format>;base64,<payload>.
package validate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// Error codes surfaced to callers. These are part of the client contract and
// also returned verbatim by the upload-validation endpoint.
const (
	CodeInvalidDataFormat    = "INVALID_DATA_FORMAT"
	CodeInvalidFileSignature = "INVALID_FILE_SIGNATURE"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnknownMimeType      = "UNKNOWN_MIME_TYPE"
	CodeValidationError      = "VALIDATION_ERROR"
)

// MaxFileSize is the absolute per-image byte ceiling on decoded payloads.
const MaxFileSize = 10 * 1024 * 1024

const dataURIPrefix = "data:"

// Error is a structured validation failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Outcome is the tagged result of validating a single image.
type Outcome struct {
	Valid bool   `json:"valid"`
	Err   *Error `json:"error,omitempty"`
}

// BatchOutcome reports the result of validating an ordered list of images.
// FailedIndex is the 1-based position of the first invalid image; it is 0
// when the batch is valid.
type BatchOutcome struct {
	Valid       bool   `json:"valid"`
	FailedIndex int    `json:"failedIndex,omitempty"`
	Err         *Error `json:"error,omitempty"`
}

// magicNumbers maps a declared MIME type to the leading byte sequences that
// identify it on the wire. The declared type must match one of these exactly,
// defending against MIME spoofing and polyglot files.
var magicNumbers = map[string][][]byte{
	"image/jpeg": {{0xFF, 0xD8, 0xFF}},
	"image/png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	"image/gif":  {[]byte("GIF87a"), []byte("GIF89a")},
	// RIFF container; the WEBP tag at offset 8 is checked separately.
	"image/webp": {[]byte("RIFF")},
}

// ParseDataURI splits a data URI into its declared MIME type and decoded
// bytes. The check is case-sensitive by design and rejects parameter
// suffixes (e.g. ";charset=utf-8") after the MIME type.
func ParseDataURI(payload string) (mime string, data []byte, verr *Error) {
	if payload == "" {
		return "", nil, &Error{Code: CodeValidationError, Message: "image payload is empty"}
	}
	if !strings.HasPrefix(payload, dataURIPrefix) {
		return "", nil, &Error{Code: CodeInvalidDataFormat, Message: "payload is not a data URI"}
	}
	rest := payload[len(dataURIPrefix):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, &Error{Code: CodeInvalidDataFormat, Message: "payload is not base64-encoded"}
	}
	mime = rest[:sep]
	if strings.ContainsAny(mime, ";,") {
		return "", nil, &Error{Code: CodeInvalidDataFormat, Message: "MIME parameters are not allowed"}
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", nil, &Error{Code: CodeInvalidDataFormat, Message: fmt.Sprintf("declared type %q is not an image", mime)}
	}
	encoded := rest[sep+len(";base64,"):]
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, &Error{Code: CodeInvalidFileSignature, Message: "payload is not decodable base64"}
	}
	return mime, data, nil
}

// MatchesMagicNumbers reports whether data's leading bytes identify the
// declared MIME type. Unknown MIME types never match.
func MatchesMagicNumbers(mime string, data []byte) bool {
	sigs, ok := magicNumbers[mime]
	if !ok {
		return false
	}
	for _, sig := range sigs {
		if len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig) {
			if mime == "image/webp" {
				if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP")) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// Image validates a single data-URI payload: shape, declared MIME type,
// decodability, byte ceiling, and magic-number agreement.
func Image(payload string) Outcome {
	mime, data, verr := ParseDataURI(payload)
	if verr != nil {
		return Outcome{Err: verr}
	}
	if _, known := magicNumbers[mime]; !known {
		return Outcome{Err: &Error{Code: CodeUnknownMimeType, Message: fmt.Sprintf("unsupported image type %q", mime)}}
	}
	if len(data) > MaxFileSize {
		return Outcome{Err: &Error{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("image is %d bytes, maximum is %d", len(data), MaxFileSize),
		}}
	}
	if !MatchesMagicNumbers(mime, data) {
		return Outcome{Err: &Error{
			Code:    CodeInvalidFileSignature,
			Message: fmt.Sprintf("file signature does not match declared type %q", mime),
		}}
	}
	return Outcome{Valid: true}
}

// Batch validates an ordered list of images. The first failing image's
// 1-based position and reason are reported; order is never changed. An empty
// list is vacuously valid.
func Batch(payloads []string) BatchOutcome {
	for i, p := range payloads {
		if out := Image(p); !out.Valid {
			return BatchOutcome{
				FailedIndex: i + 1,
				Err: &Error{
					Code:    out.Err.Code,
					Message: fmt.Sprintf("Image %d: %s", i+1, out.Err.Message),
				},
			}
		}
	}
	return BatchOutcome{Valid: true}
}

// File validates an upload described by its metadata rather than a data URI.
// It is the server-side defense-in-depth re-check for file-picker uploads:
// the declared MIME type, reported size, and raw base64 payload are each
// verified independently of whatever the client already concluded.
func File(filename, mimeType string, size int64, base64Data string) Outcome {
	if filename == "" || base64Data == "" {
		return Outcome{Err: &Error{Code: CodeValidationError, Message: "filename and base64Data are required"}}
	}
	if _, known := magicNumbers[mimeType]; !known {
		return Outcome{Err: &Error{Code: CodeUnknownMimeType, Message: fmt.Sprintf("unsupported image type %q", mimeType)}}
	}
	if size > MaxFileSize {
		return Outcome{Err: &Error{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("%s is %d bytes, maximum is %d", filename, size, MaxFileSize),
		}}
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return Outcome{Err: &Error{Code: CodeInvalidFileSignature, Message: "payload is not decodable base64"}}
	}
	if len(data) > MaxFileSize {
		return Outcome{Err: &Error{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("%s is %d bytes, maximum is %d", filename, len(data), MaxFileSize),
		}}
	}
	if !MatchesMagicNumbers(mimeType, data) {
		return Outcome{Err: &Error{
			Code:    CodeInvalidFileSignature,
			Message: fmt.Sprintf("%s does not match declared type %q", filename, mimeType),
		}}
	}
	return Outcome{Valid: true}
}
