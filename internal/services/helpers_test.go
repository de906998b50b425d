package services_test

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/audit"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/mocks"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const (
	testOwnerID  = int64(7)
	testNetwork  = "docanchor-net"
	testTxID     = "a1b2c3d4e5f6"
	testContent  = "договор поставки №42"
	otherOwnerID = int64(99)
)

type fixture struct {
	docs         *mocks.DocumentRepository
	records      *mocks.VerificationRepository
	files        *mocks.FileStorage
	gateway      *mocks.LedgerGateway
	registration *services.RegistrationService
	verification *services.VerificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		docs:    new(mocks.DocumentRepository),
		records: new(mocks.VerificationRepository),
		files:   new(mocks.FileStorage),
		gateway: new(mocks.LedgerGateway),
	}
	logger := zap.NewNop()
	recorder := audit.NewRecorder(f.records, nil, logger)
	f.registration = services.NewRegistrationService(f.docs, f.files, f.gateway, logger)
	f.verification = services.NewVerificationService(
		f.docs, f.records, f.files, f.gateway, recorder, nil,
		services.VerificationConfig{BulkMaxItems: 10, BulkConcurrency: 3},
		logger,
	)

	t.Cleanup(func() {
		f.docs.AssertExpectations(t)
		f.records.AssertExpectations(t)
		f.files.AssertExpectations(t)
		f.gateway.AssertExpectations(t)
	})
	return f
}

func owner() *models.Actor {
	return &models.Actor{ID: testOwnerID, Name: "owner"}
}

func contentHash(t *testing.T, content string) string {
	t.Helper()
	hash, err := fingerprint.HashText(content, fingerprint.SHA256)
	require.NoError(t, err)
	return hash
}

func strPtr(s string) *string {
	return &s
}

func uploadedDocument() *models.Document {
	id := uuid.New()
	return &models.Document{
		ID:               id,
		OwnerID:          testOwnerID,
		Title:            "Договор",
		OriginalFilename: "contract.txt",
		StoragePath:      "7/" + id.String(),
		Status:           models.StatusUploaded,
		SecurityLevel:    "STANDARD",
	}
}

func registeredDocument(t *testing.T) *models.Document {
	t.Helper()
	doc := uploadedDocument()
	doc.Status = models.StatusRegistered
	doc.Hash = strPtr(contentHash(t, testContent))
	doc.HashAlgorithm = strPtr(string(fingerprint.SHA256))
	doc.HashPrefix = strPtr(fingerprint.Prefix(*doc.Hash))
	doc.BlockchainTxID = strPtr(testTxID)
	doc.BlockchainNetwork = strPtr(testNetwork)
	return doc
}

func body(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

func confirmedOutcome() *models.LedgerOutcome {
	block := int64(12)
	return &models.LedgerOutcome{
		Success:     true,
		TxID:        testTxID,
		BlockNumber: &block,
		Timestamp:   time.Now().UTC(),
		Network:     testNetwork,
		Status:      models.TxStatusConfirmed,
	}
}

func pendingOutcome(simulated bool) *models.LedgerOutcome {
	return &models.LedgerOutcome{
		Success:   true,
		TxID:      testTxID,
		Timestamp: time.Now().UTC(),
		Simulated: simulated,
		Network:   testNetwork,
		Status:    models.TxStatusPending,
	}
}

func unavailableOutcome() *models.LedgerOutcome {
	return &models.LedgerOutcome{
		TxID:      testTxID,
		Timestamp: time.Now().UTC(),
		Network:   testNetwork,
		Error:     "реестр недоступен",
	}
}
