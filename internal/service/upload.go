package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"tush00nka/phonechat/internal/model"
)

// MaxUploadSize максимальный размер файла
const MaxUploadSize = 50 << 20

var safeExt = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// UploadInput загружаемый файл
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type uploadService struct {
	storage Storage
	now     func() time.Time
}

// NewUploadService создает сервис загрузки поверх хранилища
func NewUploadService(storage Storage) UploadService {
	return &uploadService{storage: storage, now: time.Now}
}

// Upload проверяет тип и размер файла и сохраняет его
func (s *uploadService) Upload(ctx context.Context, uploaderID string, in UploadInput) (*model.FileMetadata, error) {
	if in.Size > MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	body := in.Body
	contentType := mediaTypeOf(in.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		head := make([]byte, 512)
		n, err := io.ReadFull(in.Body, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		head = head[:n]
		contentType = mediaTypeOf(http.DetectContentType(head))
		body = io.MultiReader(bytes.NewReader(head), in.Body)
	}

	kind, ok := mediaKind(contentType)
	if !ok {
		return nil, ErrUnsupportedMedia
	}

	key := s.objectName(in.Filename)
	url, err := s.storage.Save(ctx, key, contentType, io.LimitReader(body, MaxUploadSize), in.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	log.Printf("Stored %s upload %s (%d bytes) for %s", kind, key, in.Size, uploaderID)

	return &model.FileMetadata{
		Key:         key,
		URL:         url,
		Type:        kind,
		Size:        in.Size,
		Name:        in.Filename,
		ContentType: contentType,
		UploadedBy:  uploaderID,
		CreatedAt:   s.now(),
	}, nil
}

func (s *uploadService) HealthCheck(ctx context.Context) error {
	return s.storage.HealthCheck(ctx)
}

// objectName строит имя <unix-millis>-<random>.<ext> по исходному имени файла
func (s *uploadService) objectName(original string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filepath.Base(original))), ".")
	if !safeExt.MatchString(ext) {
		ext = "bin"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), random, ext)
}

func mediaTypeOf(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

func mediaKind(contentType string) (string, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.MediaImage, true
	case strings.HasPrefix(contentType, "video/"):
		return model.MediaVideo, true
	}
	return "", false
}

// LocalStorage хранит файлы на диске и отдает их по URL-префиксу
type LocalStorage struct {
	dir       string
	urlPrefix string
}

// NewLocalStorage создает каталог dir, если его нет
func NewLocalStorage(dir, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (l *LocalStorage) Dir() string {
	return l.dir
}

func (l *LocalStorage) Save(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(key))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	return l.urlPrefix + "/" + filepath.Base(key), nil
}

func (l *LocalStorage) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage health check failed: %s is not a directory", l.dir)
	}
	return nil
}
