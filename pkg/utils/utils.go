package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	ErrNoFile        = errors.New("no file uploaded")
	ErrFileTooLarge  = errors.New("file size exceeds limit")
	ErrNotAnImage    = errors.New("uploaded file is not an image")
	ErrInvalidBase64 = errors.New("invalid base64 image data")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ValidateImage(contentType string, size int64) error
	DecodeBase64Image(encoded string) ([]byte, string, error)
	DetectImageType(data []byte) (string, error)
	MaxFileSize() int64
}

type utils struct {
	maxFileSize int64
}

func New() IUtils {
	return NewWithMaxFileSize(DefaultMaxFileSize)
}

func NewWithMaxFileSize(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) MaxFileSize() int64 {
	return u.maxFileSize
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateImageFile checks the declared part headers only; nothing is read
// from the payload.
func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	return u.ValidateImage(file.Header.Get("Content-Type"), file.Size)
}

func (u *utils) ValidateImage(contentType string, size int64) error {
	if size > u.maxFileSize {
		return ErrFileTooLarge
	}

	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ErrNotAnImage
	}

	return nil
}

// DecodeBase64Image accepts raw base64 or a data URL and returns the decoded
// bytes together with the sniffed MIME type.
func (u *utils) DecodeBase64Image(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.Index(encoded, ",")
		if comma == -1 {
			return nil, "", ErrInvalidBase64
		}
		encoded = encoded[comma+1:]
	}

	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > u.maxFileSize+2 {
		return nil, "", ErrFileTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", ErrInvalidBase64
	}

	mimeType, err := u.DetectImageType(data)
	if err != nil {
		return nil, mimeType, err
	}

	return data, mimeType, nil
}

func (u *utils) DetectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFile
	}

	mimeType := mimetype.Detect(data).String()
	if err := u.ValidateImage(mimeType, int64(len(data))); err != nil {
		return mimeType, err
	}

	return mimeType, nil
}
