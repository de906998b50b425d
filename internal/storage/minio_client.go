package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Код ошибки S3 для отсутствующего объекта.
const noSuchKeyCode = "NoSuchKey"

// MinioClient реализует FileStorage для MinIO.
type MinioClient struct {
	client     *minio.Client
	bucketName string
	log        *zap.Logger
}

// MinioConfig содержит параметры для подключения к MinIO.
type MinioConfig struct {
	Endpoint        string // Адрес MinIO (например, "localhost:9000")
	AccessKeyID     string // Логин
	SecretAccessKey string // Пароль
	UseSSL          bool   // Использовать SSL (обычно false для локальной разработки)
	BucketName      string // Имя бакета для хранения документов
	Region          string // Регион (не обязательно для MinIO)
}

// NewMinioClient создает новый клиент MinIO и при необходимости создает бакет.
func NewMinioClient(ctx context.Context, cfg MinioConfig, logger *zap.Logger) (*MinioClient, error) {
	log := logger.With(zap.String("component", "minio"), zap.String("bucket", cfg.BucketName))
	log.Info("Инициализация клиента MinIO", zap.String("endpoint", cfg.Endpoint))

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	exists, err := minioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существования бакета '%s': %w", cfg.BucketName, err)
	}
	if !exists {
		log.Info("Бакет не найден, создаем")
		err = minioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания бакета '%s': %w", cfg.BucketName, err)
		}
	}

	log.Info("Клиент MinIO инициализирован")
	return &MinioClient{
		client:     minioClient,
		bucketName: cfg.BucketName,
		log:        log,
	}, nil
}

// Save загружает содержимое документа в MinIO.
func (c *MinioClient) Save(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		c.log.Error("Ошибка загрузки объекта", zap.String("key", objectKey), zap.Error(err))
		return fmt.Errorf("ошибка загрузки файла в MinIO: %w", err)
	}

	c.log.Info("Объект загружен",
		zap.String("key", objectKey),
		zap.Int64("size", uploadInfo.Size),
		zap.String("etag", uploadInfo.ETag),
	)
	return nil
}

// Open открывает объект для чтения. GetObject ленивый, поэтому наличие объекта
// проверяется через Stat до возврата потока.
func (c *MinioClient) Open(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	object, err := c.client.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(objectKey, err)
	}
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, c.mapError(objectKey, err)
	}
	return object, nil
}

func (c *MinioClient) mapError(objectKey string, err error) error {
	if minio.ToErrorResponse(err).Code == noSuchKeyCode {
		c.log.Info("Объект не найден", zap.String("key", objectKey))
		return ErrObjectNotFound
	}
	c.log.Error("Ошибка получения объекта", zap.String("key", objectKey), zap.Error(err))
	return fmt.Errorf("ошибка получения файла из MinIO: %w", err)
}
