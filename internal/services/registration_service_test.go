package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/ledger"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/lifecycle"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

func TestRegistrationService_RegisterDocument(t *testing.T) {
	hash := contentHash(t, testContent)
	normalized := models.Fingerprint{Algorithm: string(fingerprint.SHA256), Hash: hash}
	request := func(doc *models.Document) services.RegisterRequest {
		return services.RegisterRequest{
			DocumentID:  doc.ID.String(),
			Fingerprint: models.Fingerprint{Algorithm: "sha-256", Hash: strings.ToUpper(hash)},
			OwnerID:     testOwnerID,
		}
	}

	t.Run("Успешная регистрация", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()
		outcome := pendingOutcome(false)

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("Register", mock.Anything, doc, normalized).Return(outcome, nil).Once()
		f.docs.On("MarkRegistered", mock.Anything, doc.ID, normalized, fingerprint.Prefix(hash), testTxID, testNetwork).
			Return(nil).Once()

		got, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.NoError(t, err)
		assert.Equal(t, outcome, got)
	})

	t.Run("Повторная регистрация тем же отпечатком", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		outcome := confirmedOutcome()

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Twice()
		f.gateway.On("Register", mock.Anything, doc, normalized).Return(outcome, nil).Twice()
		f.docs.On("MarkRegistered", mock.Anything, doc.ID, normalized, fingerprint.Prefix(hash), testTxID, testNetwork).
			Return(nil).Twice()

		first, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.NoError(t, err)
		second, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.NoError(t, err)
		assert.Equal(t, first.TxID, second.TxID)
	})

	t.Run("Другой отпечаток для зарегистрированного документа", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()

		req := request(doc)
		req.Fingerprint.Hash = contentHash(t, "другое содержимое")
		_, err := f.registration.RegisterDocument(context.Background(), req)
		require.ErrorIs(t, err, services.ErrFingerprintImmutable)
	})

	t.Run("Отозванный документ", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()
		doc.IsRevoked = true
		doc.Status = models.StatusRevoked
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()

		_, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.ErrorIs(t, err, services.ErrDocumentRevoked)
	})

	t.Run("Не владелец", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()
		doc.OwnerID = otherOwnerID
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()

		_, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.ErrorIs(t, err, services.ErrAccessDenied)
	})

	t.Run("Документ не найден", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(nil, repository.ErrDocumentNotFound).Once()

		_, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.ErrorIs(t, err, services.ErrDocumentNotFound)
	})

	t.Run("Некорректные входные данные", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()

		req := request(doc)
		req.Fingerprint.Hash = hash[:10]
		_, err := f.registration.RegisterDocument(context.Background(), req)
		require.ErrorIs(t, err, fingerprint.ErrInvalidDigest)

		req = request(doc)
		req.Fingerprint.Algorithm = "MD5"
		_, err = f.registration.RegisterDocument(context.Background(), req)
		require.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)

		req = request(doc)
		req.DocumentID = "42"
		_, err = f.registration.RegisterDocument(context.Background(), req)
		require.ErrorIs(t, err, services.ErrInvalidDocumentID)
	})

	t.Run("Реестр отклонил транзакцию", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()
		rejected := &ledger.Error{Kind: ledger.KindRejected, Op: "register", Err: errors.New("endorsement failed")}

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("Register", mock.Anything, doc, normalized).Return(nil, rejected).Once()

		_, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.ErrorIs(t, err, ledger.ErrLedgerRejected)
	})

	t.Run("Параллельное изменение документа", func(t *testing.T) {
		f := newFixture(t)
		doc := uploadedDocument()

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("Register", mock.Anything, doc, normalized).Return(pendingOutcome(false), nil).Once()
		f.docs.On("MarkRegistered", mock.Anything, doc.ID, normalized, mock.Anything, testTxID, testNetwork).
			Return(repository.ErrDocumentConflict).Once()

		_, err := f.registration.RegisterDocument(context.Background(), request(doc))
		require.ErrorIs(t, err, services.ErrConcurrentUpdate)
	})
}

func TestRegistrationService_UpdateDocumentState(t *testing.T) {
	t.Run("Подписание зарегистрированного документа", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		signed := *doc
		signed.Status = models.StatusSigned

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("UpdateState", mock.Anything, doc, models.StatusSigned,
			mock.MatchedBy(func(meta map[string]string) bool {
				return meta["previous_state"] == string(models.StatusRegistered) && meta["signer"] == "ivanov"
			})).Return(pendingOutcome(false), nil).Once()
		f.docs.On("ApplyPatch", mock.Anything, doc.ID, models.StatusRegistered,
			mock.MatchedBy(func(p models.DocumentPatch) bool {
				return p.Status != nil && *p.Status == models.StatusSigned && p.IsRevoked == nil
			})).Return(&signed, nil).Once()

		res, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "signed",
			Metadata:   map[string]string{"signer": "ivanov"},
		}, owner())
		require.NoError(t, err)
		assert.Equal(t, models.StatusSigned, res.Document.Status)
		assert.Equal(t, testTxID, res.Ledger.TxID)
	})

	t.Run("Отзыв документа", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		revoked := *doc
		revoked.Status = models.StatusRevoked
		revoked.IsRevoked = true

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("UpdateState", mock.Anything, doc, models.StatusRevoked, mock.Anything).
			Return(pendingOutcome(true), nil).Once()
		f.docs.On("ApplyPatch", mock.Anything, doc.ID, models.StatusRegistered,
			mock.MatchedBy(func(p models.DocumentPatch) bool {
				return p.IsRevoked != nil && *p.IsRevoked &&
					p.RevokedAt != nil &&
					p.RevokedBy != nil && *p.RevokedBy == testOwnerID &&
					p.RevocationReason != nil && *p.RevocationReason == "подделка"
			})).Return(&revoked, nil).Once()

		res, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "REVOKED",
			Reason:     " подделка ",
		}, owner())
		require.NoError(t, err)
		assert.True(t, res.Document.IsRevoked)
		assert.True(t, res.Ledger.Simulated)
	})

	t.Run("Отозванный документ не меняется и не попадает в реестр", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		doc.Status = models.StatusRevoked
		doc.IsRevoked = true
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Times(2)

		for _, state := range []string{"SIGNED", "REVOKED"} {
			_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
				DocumentID: doc.ID.String(),
				State:      state,
			}, owner())
			require.ErrorIs(t, err, services.ErrDocumentRevoked)
		}
		f.gateway.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Переход назад запрещен", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		doc.Status = models.StatusSigned
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()

		_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "REGISTERED",
		}, owner())
		require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	})

	t.Run("Неизвестное состояние", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: uuid.NewString(),
			State:      "ARCHIVED",
		}, owner())
		require.ErrorIs(t, err, lifecycle.ErrUnknownState)
	})

	t.Run("Отказ реестра не меняет документ", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		rejected := &ledger.Error{Kind: ledger.KindRejected, Op: "update_state", Err: errors.New("policy")}

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("UpdateState", mock.Anything, doc, models.StatusVerified, mock.Anything).
			Return(nil, rejected).Once()

		_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "VERIFIED",
		}, owner())
		require.ErrorIs(t, err, ledger.ErrLedgerRejected)
		f.docs.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Состояние изменилось параллельно", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)

		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
		f.gateway.On("UpdateState", mock.Anything, doc, models.StatusShared, mock.Anything).
			Return(pendingOutcome(false), nil).Once()
		f.docs.On("ApplyPatch", mock.Anything, doc.ID, models.StatusRegistered, mock.Anything).
			Return(nil, repository.ErrDocumentConflict).Once()

		_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "SHARED",
		}, owner())
		require.ErrorIs(t, err, services.ErrConcurrentUpdate)
	})

	t.Run("Чужой документ", func(t *testing.T) {
		f := newFixture(t)
		doc := registeredDocument(t)
		f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()

		_, err := f.registration.UpdateDocumentState(context.Background(), services.StateUpdateRequest{
			DocumentID: doc.ID.String(),
			State:      "SIGNED",
		}, &models.Actor{ID: otherOwnerID})
		require.ErrorIs(t, err, services.ErrAccessDenied)
	})
}

func TestRegistrationService_GetDocumentHistory(t *testing.T) {
	f := newFixture(t)
	doc := registeredDocument(t)
	history := []models.LedgerTransaction{
		{ID: 1, TransactionHash: testTxID, DocumentID: doc.ID, Type: models.TxTypeRegistration},
		{ID: 2, TransactionHash: "b2", DocumentID: doc.ID, Type: models.TxTypeStateUpdate},
	}
	f.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Once()
	f.gateway.On("History", mock.Anything, doc.ID).Return(history, nil).Once()

	got, err := f.registration.GetDocumentHistory(context.Background(), doc.ID.String(), owner())
	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestRegistrationService_UploadDocument(t *testing.T) {
	t.Run("Загрузка с вычислением отпечатка и регистрацией", func(t *testing.T) {
		f := newFixture(t)
		hash := contentHash(t, testContent)
		fp := models.Fingerprint{Algorithm: string(fingerprint.SHA256), Hash: hash}
		stored := &models.Document{}

		f.files.On("Save", mock.Anything,
			mock.MatchedBy(func(key string) bool { return strings.HasPrefix(key, "7/") }),
			int64(len(testContent)), "text/plain").Return(nil).Once()
		f.docs.On("Create", mock.Anything, mock.MatchedBy(func(doc *models.Document) bool {
			return doc.Status == models.StatusUploaded &&
				doc.FileSize == int64(len(testContent)) &&
				doc.OwnerID == testOwnerID &&
				doc.Title == "contract.txt" &&
				doc.StoragePath == "7/"+doc.ID.String()
		})).Run(func(args mock.Arguments) {
			*stored = *args.Get(1).(*models.Document) //nolint:errcheck // Ошибки кастования в моках приемлемы
		}).Return(nil).Once()
		f.docs.On("GetByID", mock.Anything, mock.Anything).Return(stored, nil).Twice()
		f.gateway.On("Register", mock.Anything, stored, fp).Return(pendingOutcome(true), nil).Once()
		f.docs.On("MarkRegistered", mock.Anything, mock.Anything, fp, fingerprint.Prefix(hash), testTxID, testNetwork).
			Return(nil).Once()

		res, err := f.registration.UploadDocument(context.Background(), services.UploadRequest{
			OwnerID:     testOwnerID,
			FileName:    "contract.txt",
			ContentType: "text/plain",
			Size:        int64(len(testContent)),
		}, strings.NewReader(testContent))
		require.NoError(t, err)
		assert.Equal(t, stored.ID, res.Document.ID)
		assert.True(t, res.Ledger.Simulated)
	})

	t.Run("Ошибка хранилища", func(t *testing.T) {
		f := newFixture(t)
		f.files.On("Save", mock.Anything, mock.Anything, int64(-1), "application/octet-stream").
			Return(errors.New("bucket missing")).Once()

		_, err := f.registration.UploadDocument(context.Background(), services.UploadRequest{
			OwnerID: testOwnerID,
			Size:    -1,
		}, strings.NewReader(testContent))
		require.Error(t, err)
		f.docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Неподдерживаемый алгоритм", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.registration.UploadDocument(context.Background(), services.UploadRequest{
			OwnerID:   testOwnerID,
			Algorithm: "MD5",
		}, strings.NewReader(testContent))
		require.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)
	})
}
