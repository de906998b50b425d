package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// LedgerGateway - мок шлюза реестра для тестов сервисов.
type LedgerGateway struct {
	mock.Mock
}

func (m *LedgerGateway) Network() string {
	return m.Called().String(0)
}

func (m *LedgerGateway) Register(
	ctx context.Context,
	doc *models.Document,
	fp models.Fingerprint,
) (*models.LedgerOutcome, error) {
	args := m.Called(ctx, doc, fp)
	outcome, _ := args.Get(0).(*models.LedgerOutcome)
	return outcome, args.Error(1)
}

func (m *LedgerGateway) UpdateState(
	ctx context.Context,
	doc *models.Document,
	state models.DocumentStatus,
	metadata map[string]string,
) (*models.LedgerOutcome, error) {
	args := m.Called(ctx, doc, state, metadata)
	outcome, _ := args.Get(0).(*models.LedgerOutcome)
	return outcome, args.Error(1)
}

func (m *LedgerGateway) QueryStatus(ctx context.Context, txID, network string) *models.LedgerOutcome {
	args := m.Called(ctx, txID, network)
	outcome, _ := args.Get(0).(*models.LedgerOutcome)
	return outcome
}

func (m *LedgerGateway) History(ctx context.Context, documentID uuid.UUID) ([]models.LedgerTransaction, error) {
	args := m.Called(ctx, documentID)
	txs, _ := args.Get(0).([]models.LedgerTransaction)
	return txs, args.Error(1)
}
