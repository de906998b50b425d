// Package mocks содержит моки интерфейсов для тестов сервисов и обработчиков.
package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/storage"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.DocumentRepository     = (*DocumentRepository)(nil)
	_ repository.VerificationRepository = (*VerificationRepository)(nil)
	_ storage.FileStorage               = (*FileStorage)(nil)
)

// UserRepository - мок для repository.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

// DocumentRepository - мок для repository.DocumentRepository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, id)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *DocumentRepository) FindByHash(
	ctx context.Context,
	fp models.Fingerprint,
	prefix string,
) (*models.Document, error) {
	args := m.Called(ctx, fp, prefix)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *DocumentRepository) MarkRegistered(
	ctx context.Context,
	id uuid.UUID,
	fp models.Fingerprint,
	prefix, txID, network string,
) error {
	return m.Called(ctx, id, fp, prefix, txID, network).Error(0)
}

func (m *DocumentRepository) ApplyPatch(
	ctx context.Context,
	id uuid.UUID,
	expected models.DocumentStatus,
	patch models.DocumentPatch,
) (*models.Document, error) {
	args := m.Called(ctx, id, expected, patch)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

// VerificationRepository - мок для repository.VerificationRepository.
type VerificationRepository struct {
	mock.Mock
}

func (m *VerificationRepository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *VerificationRepository) ListByDocument(
	ctx context.Context,
	documentID uuid.UUID,
) ([]models.VerificationRecord, error) {
	args := m.Called(ctx, documentID)
	records, _ := args.Get(0).([]models.VerificationRecord)
	return records, args.Error(1)
}

// FileStorage - мок для storage.FileStorage.
type FileStorage struct {
	mock.Mock
}

func (m *FileStorage) Save(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	// Содержимое вычитывается, как это сделало бы настоящее хранилище.
	_, _ = io.Copy(io.Discard, reader)
	return m.Called(ctx, objectKey, size, contentType).Error(0)
}

func (m *FileStorage) Open(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}
