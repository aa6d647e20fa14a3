package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const DefaultDir = "uploads"

var ErrTooLarge = errors.New("staged payload exceeds size limit")

type IStaging interface {
	Stage(src io.Reader, meta Meta) (*Upload, error)
	Dir() string
}

// Meta is what the caller declared about the payload.
type Meta struct {
	Filename string
	MimeType string
}

// Upload is a payload persisted at a path unique to one request. The file is
// owned by the caller and must be released exactly once.
type Upload struct {
	Path     string
	MimeType string
	Size     int64
	Digest   string

	once       sync.Once
	releaseErr error
}

// Release removes the staged file. Repeated calls are no-ops returning the
// first result.
func (u *Upload) Release() error {
	u.once.Do(func() {
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.releaseErr = err
		}
	})
	return u.releaseErr
}

type stager struct {
	dir      string
	maxBytes int64
}

// New resolves dir against the current working directory once, so staged
// paths stay valid for a child process running elsewhere.
func New(dir string, maxBytes int64) IStaging {
	if dir == "" {
		dir = DefaultDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &stager{
		dir:      dir,
		maxBytes: maxBytes,
	}
}

func (s *stager) Dir() string {
	return s.dir
}

func (s *stager) Stage(src io.Reader, meta Meta) (*Upload, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+safeExt(meta.Filename))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	hash := sha256.New()
	reader := src
	if s.maxBytes > 0 {
		reader = io.LimitReader(src, s.maxBytes+1)
	}

	written, copyErr := io.Copy(io.MultiWriter(file, hash), reader)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staging file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("close staging file: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = os.Remove(path)
		return nil, ErrTooLarge
	}

	return &Upload{
		Path:     path,
		MimeType: meta.MimeType,
		Size:     written,
		Digest:   hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// safeExt keeps a short alphanumeric extension so the model can still infer
// the format from the path.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
