package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"tush00nka/phonechat/internal/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadService_LocalStorage(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir, "/uploads/")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := NewUploadService(storage)

	meta, err := svc.Upload(context.Background(), "user-1", UploadInput{
		Filename:    "Photo.JPG",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if meta.Type != model.MediaImage || meta.Size != 4 || meta.Name != "Photo.JPG" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if !regexp.MustCompile(`^/uploads/\d+-[0-9a-f]{12}\.jpg$`).MatchString(meta.URL) {
		t.Fatalf("unexpected url: %s", meta.URL)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(meta.URL)))
	if err != nil || string(data) != "data" {
		t.Fatalf("stored file: %q, %v", data, err)
	}
}

func TestUploadService_SniffsContentType(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir(), "/uploads")
	svc := NewUploadService(storage)

	meta, err := svc.Upload(context.Background(), "user-1", UploadInput{
		Filename: "noext",
		Size:     int64(len(pngHeader)),
		Body:     bytes.NewReader(pngHeader),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if meta.Type != model.MediaImage || !strings.HasSuffix(meta.URL, ".bin") {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

type failingStorage struct{}

func (failingStorage) Save(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	return "", errors.New("disk full")
}

func (failingStorage) HealthCheck(ctx context.Context) error { return errors.New("down") }

func TestUploadService_Rejects(t *testing.T) {
	svc := NewUploadService(failingStorage{})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", UploadInput{Filename: "a.pdf", ContentType: "application/pdf", Size: 10, Body: strings.NewReader("%PDF")})
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("pdf: expected ErrUnsupportedMedia, got %v", err)
	}

	_, err = svc.Upload(ctx, "user-1", UploadInput{Filename: "big.mp4", ContentType: "video/mp4", Size: MaxUploadSize + 1, Body: strings.NewReader("")})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("big: expected ErrFileTooLarge, got %v", err)
	}

	_, err = svc.Upload(ctx, "user-1", UploadInput{Filename: "ok.mp4", ContentType: "video/mp4", Size: 1, Body: strings.NewReader("x")})
	if err == nil || IsClientError(err) {
		t.Errorf("storage failure should be a server error, got %v", err)
	}
}

func TestUploadService_ObjectNameExtension(t *testing.T) {
	svc := NewUploadService(nil).(*uploadService)

	tests := []struct {
		original string
		ext      string
	}{
		{"clip.MP4", "mp4"},
		{"archive.tar.gz", "gz"},
		{"noext", "bin"},
		{"photo.jp g", "bin"},
		{"photo.j?g#x", "bin"},
		{"photo.%2e%2e", "bin"},
		{"фото.жпг", "bin"},
		{"photo.averylongext", "bin"},
		{"../../etc/passwd", "bin"},
	}

	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			name := svc.objectName(tt.original)
			if !regexp.MustCompile(`^\d+-[0-9a-f]{12}\.` + tt.ext + `$`).MatchString(name) {
				t.Fatalf("objectName(%q) = %q, want extension %q", tt.original, name, tt.ext)
			}
		})
	}
}
