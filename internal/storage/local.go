package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStorage хранит документы в каталоге локальной файловой системы.
type LocalStorage struct {
	root string
	log  *zap.Logger
}

// NewLocalStorage создает хранилище в каталоге root, создавая его при необходимости.
func NewLocalStorage(root string, logger *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога хранилища %s: %w", root, err)
	}
	return &LocalStorage{root: root, log: logger.With(zap.String("component", "local_storage"))}, nil
}

func (s *LocalStorage) path(objectKey string) (string, error) {
	// Ключ должен оставаться внутри корня хранилища.
	if !filepath.IsLocal(objectKey) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, objectKey)
	}
	return filepath.Join(s.root, objectKey), nil
}

// Save записывает содержимое во временный файл и атомарно переименовывает его.
func (s *LocalStorage) Save(ctx context.Context, objectKey string, reader io.Reader, _ int64, _ string) error {
	path, err := s.path(objectKey)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("ошибка создания каталога: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // после переименования файла уже нет

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: reader})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}

	s.log.Info("Объект сохранен", zap.String("key", objectKey), zap.Int64("size", written))
	return nil
}

// Open открывает файл документа для чтения.
func (s *LocalStorage) Open(_ context.Context, objectKey string) (io.ReadCloser, error) {
	path, err := s.path(objectKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return f, nil
}

// contextReader прерывает чтение при отмене контекста.
type contextReader struct {
	ctx context.Context //nolint:containedctx // обертка живет только на время одного копирования
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
