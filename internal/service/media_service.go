package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/config"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrMediaNotFound       = errors.New("media not found")
)

// MediaKind groups the file types accepted for one purpose.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
)

// mediaURLPrefix is the public path uploaded files are served under.
const mediaURLPrefix = "/uploads/"

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

// Allowed MIME types per kind, with the extension files are stored under.
var allowedMIMETypes = map[MediaKind]map[string]string{
	MediaImage: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	},
	MediaDocument: {
		"application/pdf": ".pdf",
	},
	MediaVideo: {
		"video/webm": ".webm",
		"video/mp4":  ".mp4",
		"video/ogg":  ".ogv",
	},
}

// MediaService stores uploads on local disk.
type MediaService struct {
	uploadDir string
	limits    map[MediaKind]int64
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{
		uploadDir: cfg.UploadDir,
		limits: map[MediaKind]int64{
			MediaImage:    cfg.MaxUploadBytes,
			MediaDocument: cfg.MaxUploadBytes,
			MediaVideo:    cfg.MaxVideoBytes,
		},
	}
}

// Limit returns the size limit for a kind.
func (s *MediaService) Limit(kind MediaKind) int64 {
	return s.limits[kind]
}

// Save sniffs the content type, enforces the size limit and writes the file
// under a random name. It returns the public URL path of the file.
func (s *MediaService) Save(r io.Reader, size int64, kind MediaKind) (string, error) {
	allowed, ok := allowedMIMETypes[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown media kind %q", ErrUnsupportedFileType, kind)
	}
	limit := s.limits[kind]
	if size > limit {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, size, limit)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	ext, detected := matchMIME(mimetype.Detect(head), allowed)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + ext
	destPath := filepath.Join(s.uploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), limit+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	if err != nil {
		_ = os.Remove(destPath)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write file: %w", err)
	}

	return mediaURLPrefix + filename, nil
}

// Resolve maps a public URL path back to the file on disk.
func (s *MediaService) Resolve(url string) (string, error) {
	if !strings.HasPrefix(url, mediaURLPrefix) {
		return "", ErrMediaNotFound
	}
	name := strings.TrimPrefix(url, mediaURLPrefix)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrMediaNotFound
	}
	path := filepath.Join(s.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrMediaNotFound
	}
	return path, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *MediaService) Remove(url string) error {
	path, err := s.Resolve(url)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// matchMIME walks the detected type and its parents looking for an allowed one.
func matchMIME(m *mimetype.MIME, allowed map[string]string) (ext, detected string) {
	detected = m.String()
	for t := m; t != nil; t = t.Parent() {
		for mime, e := range allowed {
			if t.Is(mime) {
				return e, detected
			}
		}
	}
	return "", detected
}
