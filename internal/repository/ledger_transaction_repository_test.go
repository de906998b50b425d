package repository_test

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

func TestLedgerTransactionRepository_Create(t *testing.T) {
	docID := uuid.New()
	insert := regexp.QuoteMeta(`INSERT INTO ledger_transactions`)

	newTx := func() *models.LedgerTransaction {
		return &models.LedgerTransaction{
			TransactionHash: "sim-abc",
			DocumentID:      docID,
			Network:         "docanchor-channel",
			Status:          models.TxStatusPending,
			Type:            models.TxTypeRegistration,
			Simulated:       true,
			Payload:         json.RawMessage(`{"hash":"00"}`),
		}
	}

	t.Run("Успешное создание", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
		tx := newTx()
		now := time.Now().UTC()

		mock.ExpectQuery(insert).
			WithArgs("sim-abc", docID, "docanchor-channel", nil, nil, models.TxStatusPending,
				models.TxTypeRegistration, true, `{"hash":"00"}`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

		require.NoError(t, repo.Create(context.Background(), tx))
		assert.Equal(t, int64(5), tx.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Пустой payload отправляется как пустой объект", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
		tx := newTx()
		tx.Payload = nil
		now := time.Now().UTC()

		mock.ExpectQuery(insert).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), "{}").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(6), now, now))

		require.NoError(t, repo.Create(context.Background(), tx))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Повтор хеша транзакции", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
		mock.ExpectQuery(insert).WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), newTx())
		require.ErrorIs(t, err, repository.ErrTransactionExists)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerTransactionRepository_FindByDocumentAndType(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
	docID := uuid.New()
	now := time.Now().UTC()
	query := regexp.QuoteMeta(`WHERE document_id=$1 AND transaction_type=$2 AND status <> 'failed'`)

	rows := sqlmock.NewRows(ledgerTxColumnNames).AddRow(
		int64(1), "tx-1", docID.String(), "net", int64(42), now, "confirmed",
		"DOCUMENT_REGISTRATION", false, []byte(`{}`), now, now,
	)
	mock.ExpectQuery(query).WithArgs(docID, models.TxTypeRegistration).WillReturnRows(rows)

	tx, err := repo.FindByDocumentAndType(context.Background(), docID, models.TxTypeRegistration)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.TransactionHash)
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, int64(42), *tx.BlockNumber)
	assert.Equal(t, models.TxStatusConfirmed, tx.Status)

	mock.ExpectQuery(query).WithArgs(docID, models.TxTypeStateUpdate).
		WillReturnRows(sqlmock.NewRows(ledgerTxColumnNames))
	_, err = repo.FindByDocumentAndType(context.Background(), docID, models.TxTypeStateUpdate)
	require.ErrorIs(t, err, repository.ErrTransactionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTransactionRepository_UpdateStatusByHash(t *testing.T) {
	block := int64(100)
	ts := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`UPDATE ledger_transactions SET`)

	tests := []struct {
		name        string
		result      driver.Result
		expectedErr error
	}{
		{"Статус обновлен", sqlmock.NewResult(0, 1), nil},
		{"Транзакция не найдена", sqlmock.NewResult(0, 0), repository.ErrTransactionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
			mock.ExpectExec(query).
				WithArgs("tx-1", models.TxStatusConfirmed, block, ts).
				WillReturnResult(tt.result)

			err := repo.UpdateStatusByHash(context.Background(), "tx-1", models.TxStatusConfirmed, &block, &ts)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLedgerTransactionRepository_ListByDocument(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPostgresLedgerTransactionRepository(db, zap.NewNop())
	docID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(ledgerTxColumnNames).
		AddRow(int64(1), "tx-1", docID.String(), "net", nil, nil, "pending",
			"DOCUMENT_REGISTRATION", true, []byte(`{}`), now, now).
		AddRow(int64(2), "tx-2", docID.String(), "net", nil, nil, "pending",
			"STATE_UPDATE", true, []byte(`{"state":"SIGNED"}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM ledger_transactions WHERE document_id=$1 ORDER BY id`)).
		WithArgs(docID).WillReturnRows(rows)

	txs, err := repo.ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxTypeRegistration, txs[0].Type)
	assert.Equal(t, models.TxTypeStateUpdate, txs[1].Type)
	assert.JSONEq(t, `{"state":"SIGNED"}`, string(txs[1].Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}
