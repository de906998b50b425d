package handlers_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// MockAuthService - мок для handlers.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

// MockRegistrar - мок для handlers.DocumentRegistrar.
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterDocument(
	ctx context.Context,
	req services.RegisterRequest,
) (*models.LedgerOutcome, error) {
	args := m.Called(ctx, req)
	outcome, _ := args.Get(0).(*models.LedgerOutcome)
	return outcome, args.Error(1)
}

func (m *MockRegistrar) UpdateDocumentState(
	ctx context.Context,
	req services.StateUpdateRequest,
	actor *models.Actor,
) (*services.StateUpdateResult, error) {
	args := m.Called(ctx, req, actor)
	res, _ := args.Get(0).(*services.StateUpdateResult)
	return res, args.Error(1)
}

func (m *MockRegistrar) GetDocumentHistory(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) ([]models.LedgerTransaction, error) {
	args := m.Called(ctx, documentID, actor)
	txs, _ := args.Get(0).([]models.LedgerTransaction)
	return txs, args.Error(1)
}

func (m *MockRegistrar) UploadDocument(
	ctx context.Context,
	req services.UploadRequest,
	content io.Reader,
) (*services.UploadResult, error) {
	// Тело вычитывается, как это сделал бы настоящий сервис.
	_, _ = io.Copy(io.Discard, content)
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*services.UploadResult)
	return res, args.Error(1)
}

// MockVerifier - мок для handlers.DocumentVerifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyDocument(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) (*models.VerificationOutcome, error) {
	args := m.Called(ctx, documentID, actor)
	outcome, _ := args.Get(0).(*models.VerificationOutcome)
	return outcome, args.Error(1)
}

func (m *MockVerifier) VerifyByFingerprint(
	ctx context.Context,
	fp models.Fingerprint,
	actor *models.Actor,
) (*models.VerificationOutcome, error) {
	args := m.Called(ctx, fp, actor)
	outcome, _ := args.Get(0).(*models.VerificationOutcome)
	return outcome, args.Error(1)
}

func (m *MockVerifier) GetVerificationHistory(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) ([]models.VerificationRecord, error) {
	args := m.Called(ctx, documentID, actor)
	records, _ := args.Get(0).([]models.VerificationRecord)
	return records, args.Error(1)
}

func (m *MockVerifier) VerifyBulk(
	ctx context.Context,
	documentIDs []string,
	actor *models.Actor,
) (*models.BulkResult, error) {
	args := m.Called(ctx, documentIDs, actor)
	res, _ := args.Get(0).(*models.BulkResult)
	return res, args.Error(1)
}
