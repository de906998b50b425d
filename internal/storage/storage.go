// Package storage - источник байтов документов (MinIO или локальная файловая система).
package storage

import (
	"context"
	"errors"
	"io"
)

// FileStorage определяет интерфейс для взаимодействия с хранилищем содержимого документов.
type FileStorage interface {
	Save(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	// Open возвращает содержимое объекта. Если объекта нет - ErrObjectNotFound.
	// Возвращенный io.ReadCloser нужно закрыть после использования.
	Open(ctx context.Context, objectKey string) (io.ReadCloser, error)
}

// Кастомные ошибки хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	ErrInvalidKey     = errors.New("недопустимый ключ объекта")
)
