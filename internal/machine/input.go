package machine

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"contentmachine/internal/llm"
)

// ErrEmptyInput is returned when there is nothing to generate from.
var ErrEmptyInput = errors.New("machine: no content to generate from")

// Input is raw material for a post. Exactly one of the concrete types below.
type Input interface {
	inputKind() string
}

// TextInput is free-form text typed or pasted by the author.
type TextInput struct {
	Text string
}

// FileInput is text read from a local file.
type FileInput struct {
	Path string
}

// ImageInput is a screenshot on disk with an optional caption.
type ImageInput struct {
	Path    string
	Caption string
}

// ImageBytesInput is an uploaded image with an optional caption.
type ImageBytesInput struct {
	MIME    string
	Data    []byte
	Caption string
}

// VideoInput references a video whose transcript becomes the source text.
type VideoInput struct {
	URL string
}

func (TextInput) inputKind() string       { return "text" }
func (FileInput) inputKind() string       { return "file" }
func (ImageInput) inputKind() string      { return "image" }
func (ImageBytesInput) inputKind() string { return "image" }
func (VideoInput) inputKind() string      { return "video" }

// KindOf names the input type for logs and responses.
func KindOf(in Input) string {
	if in == nil {
		return ""
	}
	return in.inputKind()
}

// Validate reports input errors before any network call is made.
func Validate(in Input) error {
	switch v := in.(type) {
	case TextInput:
		if strings.TrimSpace(v.Text) == "" {
			return ErrEmptyInput
		}
	case FileInput:
		if strings.TrimSpace(v.Path) == "" {
			return fmt.Errorf("%w: file path is empty", ErrEmptyInput)
		}
	case ImageInput:
		if strings.TrimSpace(v.Path) == "" {
			return fmt.Errorf("%w: image path is empty", ErrEmptyInput)
		}
	case ImageBytesInput:
		if len(v.Data) == 0 {
			return fmt.Errorf("%w: image is empty", ErrEmptyInput)
		}
	case VideoInput:
		if strings.TrimSpace(v.URL) == "" {
			return fmt.Errorf("%w: video url is empty", ErrEmptyInput)
		}
	case nil:
		return ErrEmptyInput
	default:
		return fmt.Errorf("machine: unsupported input %T", in)
	}
	return nil
}

// ReadImage loads an image from disk and infers its MIME type from the extension.
func ReadImage(path string) (llm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Image{}, fmt.Errorf("machine: read image: %w", err)
	}
	return llm.Image{MIME: imageMIME(path, data), Data: data}, nil
}

func imageMIME(path string, data []byte) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return "image/png"
}
